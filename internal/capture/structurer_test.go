package capture

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/zoolog/internal/backend"
)

func TestLocalStructurer(t *testing.T) {
	date := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
	form, err := LocalStructurer{}.Structure(t.Context(), StructureInput{
		Transcript: "Elephant bathed and ate sugarcane",
		Date:       date,
		Signer:     "Meena",
	})
	require.NoError(t, err)

	assert.Equal(t, "5/1/2025", form.DateOrDay)
	assert.Equal(t, "Elephant bathed and ate sugarcane", form.NormalBehaviourDetails)
	assert.Equal(t, "Meena", form.InchargeSignature)
	assert.Equal(t, "Observation recorded on 5/1/2025: Elephant bathed and ate sugarcane", form.DailyAnimalHealthMonitoring)
	assert.Equal(t, "Standard feeding schedule followed", form.CarnivorousAnimalFeedingChart)
	assert.Equal(t, "Stock levels adequate", form.MedicineStockRegister)
	assert.Equal(t, "Wildlife monitoring completed on 5/1/2025", form.DailyWildlifeMonitoring)
	assert.True(t, form.AnimalObservedOnTime)
	assert.True(t, form.FeedGivenAsPrescribed)
	assert.Empty(t, form.OtherAnimalRequirements)
}

func TestLocalStructurerSummaryIsTruncated(t *testing.T) {
	long := strings.Repeat("बाघ ", 60)
	form, err := LocalStructurer{}.Structure(t.Context(), StructureInput{Transcript: long, Date: fixedNow})
	require.NoError(t, err)

	summary := strings.TrimPrefix(form.DailyAnimalHealthMonitoring, "Observation recorded on 14/3/2025: ")
	assert.True(t, strings.HasSuffix(summary, "..."))
	assert.Equal(t, healthSummaryRunes+3, len([]rune(summary)))
	assert.Equal(t, DefaultSignature, form.InchargeSignature)
}

type fakeFormService struct {
	enabled bool
	form    *backend.FormData
	err     error
	req     *backend.StructureRequest
}

func (f *fakeFormService) StructuringEnabled() bool { return f.enabled }

func (f *fakeFormService) Structure(_ context.Context, req *backend.StructureRequest) (*backend.FormData, error) {
	f.req = req
	return f.form, f.err
}

func TestServerStructurerMergesDefaults(t *testing.T) {
	svc := &fakeFormService{enabled: true, form: &backend.FormData{
		NormalBehaviourDetails:   "Active, ate well",
		OtherAnimalRequirements:  "Replace water trough",
		EnclosureCleanedProperly: false,
		AnimalObservedOnTime:     true,
	}}
	s := ServerStructurer{Service: svc}

	form, err := s.Structure(t.Context(), StructureInput{
		Transcript: "ate well, trough leaking",
		Date:       fixedNow,
		Language:   "hi",
		Signer:     "Asha",
	})
	require.NoError(t, err)

	require.NotNil(t, svc.req)
	assert.Equal(t, "ate well, trough leaking", svc.req.Text)
	assert.Equal(t, "2025-03-14", svc.req.Date)
	assert.Equal(t, "hi", svc.req.Language)

	assert.Equal(t, "Active, ate well", form.NormalBehaviourDetails, "server fields win")
	assert.Equal(t, "Replace water trough", form.OtherAnimalRequirements)
	assert.False(t, form.EnclosureCleanedProperly)
	assert.Equal(t, "14/3/2025", form.DateOrDay, "empty server fields take local defaults")
	assert.Equal(t, "Asha", form.InchargeSignature)
}

func TestServerStructurerDisabledUsesLocal(t *testing.T) {
	svc := &fakeFormService{enabled: false}
	form, err := ServerStructurer{Service: svc}.Structure(t.Context(), StructureInput{Transcript: "calm", Date: fixedNow})
	require.NoError(t, err)
	assert.Nil(t, svc.req)
	assert.Equal(t, "calm", form.NormalBehaviourDetails)
}

func TestServerStructurerFailure(t *testing.T) {
	svc := &fakeFormService{enabled: true, err: assert.AnError}
	_, err := ServerStructurer{Service: svc}.Structure(t.Context(), StructureInput{Transcript: "calm", Date: fixedNow})
	require.ErrorIs(t, err, assert.AnError)
}

func TestFormSet(t *testing.T) {
	f := DefaultForm()
	require.NoError(t, f.Set("normal_behaviour_status", false))
	require.NoError(t, f.Set("incharge_signature", "Meena"))
	assert.False(t, f.NormalBehaviourStatus)
	assert.Equal(t, "Meena", f.InchargeSignature)

	require.ErrorIs(t, f.Set("normal_behaviour_status", "false"), ErrInvalidField)
	require.ErrorIs(t, f.Set("incharge_signature", 3), ErrInvalidField)
	require.ErrorIs(t, f.Set("unknown", true), ErrInvalidField)

	isBool, ok := IsBoolField("feed_given_as_prescribed")
	assert.True(t, ok)
	assert.True(t, isBool)
	_, ok = IsBoolField("nope")
	assert.False(t, ok)
}

func TestFormWireRoundTrip(t *testing.T) {
	f := DefaultForm()
	f.OtherAnimalRequirements = "hay"
	f.CleanDrinkingWaterProvided = false

	back := FormFromWire(f.Wire())
	assert.Equal(t, f, back)
}
