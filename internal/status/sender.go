package status

import (
	"strings"

	"github.com/seetara/ReconBox/internal/models"
)

// courierMarkers identify courier-side authors: company name variants plus
// generic staff/system/role words the courier panel stamps on comments.
// Checked before internal markers, so e.g. "Seetara Admin" still classifies as
// the provider side.
var courierMarkers = []string{
	"gaaubesi",
	"gaau besi",
	"gbl",
	"staff",
	"admin",
	"system",
	"courier",
	"rider",
	"delivery",
}

// internalMarkers identify our own vendor panel users.
var internalMarkers = []string{
	"seetara",
	"see tara",
	"vendor",
	"merchant",
}

// ClassifySender attributes a courier comment by its author string. Missing or
// unattributable authors default to the provider side: internal staff comments
// are always attributed, so an anonymous one came from the courier.
func ClassifySender(author string) models.CommentSender {
	s := strings.ToLower(strings.TrimSpace(author))
	if s == "" {
		return models.SenderLogisticsProvider
	}
	for _, m := range courierMarkers {
		if strings.Contains(s, m) {
			return models.SenderLogisticsProvider
		}
	}
	for _, m := range internalMarkers {
		if strings.Contains(s, m) {
			return models.SenderERPUser
		}
	}
	return models.SenderLogisticsProvider
}
