package sync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/infrastructure/queue"
)

// Job names. The prefix before the dot is the platform the job talks to.
const (
	JobHubSpotPush        = "hubspot.push"
	JobHubSpotUpdateStage = "hubspot.update_stage"
	JobZohoPush           = "zoho.push"
	JobZohoUpdateStage    = "zoho.update_stage"
	JobWhatsAppWelcome    = "whatsapp.welcome"
	JobWhatsAppBrochure   = "whatsapp.brochure"
	JobWhatsAppFollowup   = "whatsapp.followup"
	JobWhatsAppSiteVisit  = "whatsapp.site_visit"
	JobWhatsAppWin        = "whatsapp.win"
	JobMetaLead           = "meta.lead"
	JobMetaSchedule       = "meta.schedule"
	JobMetaPurchase       = "meta.purchase"
)

// Args is the payload every sync job carries. Revenue is only set for
// purchase conversion jobs.
type Args struct {
	LeadID  uuid.UUID `json:"lead_id"`
	Revenue int64     `json:"revenue,omitempty"`
}

// DecodeArgs unpacks the job payload
func DecodeArgs(job *queue.Job) (Args, error) {
	var args Args
	if err := json.Unmarshal(job.Args, &args); err != nil {
		return Args{}, fmt.Errorf("decode args for job %s: %w", job.Name, err)
	}
	if args.LeadID == uuid.Nil {
		return Args{}, fmt.Errorf("job %s carries no lead id", job.Name)
	}
	return args, nil
}

// PlatformForJob derives the target platform from a job name
func PlatformForJob(name string) integration.Platform {
	prefix, _, _ := strings.Cut(name, ".")
	return integration.Platform(prefix)
}

// templateForMessage maps a message type to its pre-approved WhatsApp
// template name
var templateForMessage = map[integration.MessageType]string{
	integration.MessageTypeWelcome:   "lead_welcome",
	integration.MessageTypeBrochure:  "brochure_share",
	integration.MessageTypeFollowup:  "lead_followup",
	integration.MessageTypeSiteVisit: "site_visit_confirm",
	integration.MessageTypeWin:       "booking_congrats",
}
