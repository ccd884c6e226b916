// Package traceroute decides which downstream handler owns the next
// step for an RMA. Routing is advisory: an unmapped vendor falls back
// to the default handler instead of failing the request.
package traceroute

import (
	"github.com/rs/zerolog/log"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	vendorx "github.com/claimr-app/claimr-mesh/agent/vendor"
)

const DefaultHandler = "default_handler"

var vendorRoutes = map[string]string{
	"qsc":      "formbot_qsc",
	"biamp":    "formbot_biamp",
	"shure":    "formbot_shure",
	"crestron": "callbot_crestron",
	"extron":   "formbot_extron",
}

// Route returns the handler id for the record's vendor.
func Route(rma *contractx.RMARecord) string {
	if rma == nil {
		return DefaultHandler
	}

	next, ok := vendorRoutes[vendorx.Normalize(rma.Vendor)]
	if !ok {
		next = DefaultHandler
	}

	log.Info().
		Str("agent", contractx.AgentTraceRoute).
		Str("rma_id", rma.ID).
		Str("vendor", rma.Vendor).
		Str("next_step", next).
		Msg("routing decision")

	return next
}
