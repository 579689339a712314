package handlers

import (
	"github.com/feichai0017/ingest-triage/internal/service/ingest"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

type Handlers struct {
	Document *DocumentHandler
}

func NewHandlers(
	ingestService ingest.IngestService,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Document: NewDocumentHandler(ingestService, log),
	}
}
