package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	contentRenderMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "labsite_content_render", Help: "Markdown/HTML content renders"})

	contactMessagesMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "labsite_contact_messages_total", Help: "Contact messages received"})

	uploadsMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "labsite_uploads_total", Help: "Files uploaded"})

	uploadBytesMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "labsite_upload_bytes", Help: "Uploaded file sizes in bytes"})

	entityWritesMetric = promauto.NewCounterVec(prometheus.CounterOpts{Name: "labsite_entity_writes_total", Help: "Create/update/delete operations per entity"}, []string{"entity", "op"})
)
