package capture

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/logger"
)

// DateLabelLayout renders the form date the way keepers write it (d/m/yyyy).
const DateLabelLayout = "2/1/2006"

// DefaultSignature is used when nobody is signed in.
const DefaultSignature = "Zoo Keeper"

const healthSummaryRunes = 100

// StructureInput is what the structurer works from
type StructureInput struct {
	Transcript string
	Date       time.Time
	Language   string
	Signer     string
}

// Structurer turns a transcript into a reviewable form
type Structurer interface {
	Structure(ctx context.Context, in StructureInput) (Form, error)
}

// LocalStructurer fills the checklist without a network call.
type LocalStructurer struct{}

func (LocalStructurer) Structure(_ context.Context, in StructureInput) (Form, error) {
	label := in.Date.Format(DateLabelLayout)
	signer := in.Signer
	if signer == "" {
		signer = DefaultSignature
	}

	f := DefaultForm()
	f.DateOrDay = label
	f.NormalBehaviourDetails = in.Transcript
	f.InchargeSignature = signer
	f.DailyAnimalHealthMonitoring = fmt.Sprintf("Observation recorded on %s: %s", label, summarize(in.Transcript))
	f.CarnivorousAnimalFeedingChart = "Standard feeding schedule followed"
	f.MedicineStockRegister = "Stock levels adequate"
	f.DailyWildlifeMonitoring = "Wildlife monitoring completed on " + label
	return f, nil
}

func summarize(s string) string {
	if utf8.RuneCountInString(s) <= healthSummaryRunes {
		return s
	}
	return string([]rune(s)[:healthSummaryRunes]) + "..."
}

// FormService is the server-side structuring endpoint
type FormService interface {
	StructuringEnabled() bool
	Structure(ctx context.Context, req *backend.StructureRequest) (*backend.FormData, error)
}

// ServerStructurer asks the backend to extract the checklist and fills any
// field it leaves empty from the local defaults.
type ServerStructurer struct {
	Service  FormService
	Fallback Structurer
	Log      logger.Logger
}

func (s ServerStructurer) Structure(ctx context.Context, in StructureInput) (Form, error) {
	fallback := s.Fallback
	if fallback == nil {
		fallback = LocalStructurer{}
	}
	local, err := fallback.Structure(ctx, in)
	if err != nil {
		return Form{}, err
	}
	if s.Service == nil || !s.Service.StructuringEnabled() {
		return local, nil
	}

	remote, err := s.Service.Structure(ctx, &backend.StructureRequest{
		Text:     in.Transcript,
		Date:     in.Date.Format(time.DateOnly),
		Language: in.Language,
	})
	if err != nil {
		return Form{}, err
	}

	merged := FormFromWire(remote)
	fillEmpty(&merged.DateOrDay, local.DateOrDay)
	fillEmpty(&merged.NormalBehaviourDetails, local.NormalBehaviourDetails)
	fillEmpty(&merged.InchargeSignature, local.InchargeSignature)
	fillEmpty(&merged.DailyAnimalHealthMonitoring, local.DailyAnimalHealthMonitoring)
	fillEmpty(&merged.CarnivorousAnimalFeedingChart, local.CarnivorousAnimalFeedingChart)
	fillEmpty(&merged.MedicineStockRegister, local.MedicineStockRegister)
	fillEmpty(&merged.DailyWildlifeMonitoring, local.DailyWildlifeMonitoring)

	if s.Log != nil {
		s.Log.Debug("form structured by server", logger.Int("transcript_length", len(in.Transcript)))
	}
	return merged, nil
}

func fillEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
