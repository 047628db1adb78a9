package capture

import (
	"fmt"

	"github.com/tphakala/zoolog/internal/backend"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
)

// Form is the structured daily checklist reviewed before submit.
type Form struct {
	DateOrDay                     string `json:"date_or_day"`
	AnimalObservedOnTime          bool   `json:"animal_observed_on_time"`
	CleanDrinkingWaterProvided    bool   `json:"clean_drinking_water_provided"`
	EnclosureCleanedProperly      bool   `json:"enclosure_cleaned_properly"`
	NormalBehaviourStatus         bool   `json:"normal_behaviour_status"`
	NormalBehaviourDetails        string `json:"normal_behaviour_details"`
	FeedAndSupplementsAvailable   bool   `json:"feed_and_supplements_available"`
	FeedGivenAsPrescribed         bool   `json:"feed_given_as_prescribed"`
	OtherAnimalRequirements       string `json:"other_animal_requirements"`
	InchargeSignature             string `json:"incharge_signature"`
	DailyAnimalHealthMonitoring   string `json:"daily_animal_health_monitoring"`
	CarnivorousAnimalFeedingChart string `json:"carnivorous_animal_feeding_chart"`
	MedicineStockRegister         string `json:"medicine_stock_register"`
	DailyWildlifeMonitoring       string `json:"daily_wildlife_monitoring"`
}

// DefaultForm has every checklist item ticked.
func DefaultForm() Form {
	return Form{
		AnimalObservedOnTime:        true,
		CleanDrinkingWaterProvided:  true,
		EnclosureCleanedProperly:    true,
		NormalBehaviourStatus:       true,
		FeedAndSupplementsAvailable: true,
		FeedGivenAsPrescribed:       true,
	}
}

// Wire converts the form to the backend payload type.
func (f *Form) Wire() *backend.FormData {
	w := backend.FormData(*f)
	return &w
}

// FormFromWire converts a backend form.
func FormFromWire(w *backend.FormData) Form {
	return Form(*w)
}

type formField struct {
	boolean bool
	getBool func(*Form) *bool
	getText func(*Form) *string
}

func boolField(get func(*Form) *bool) formField   { return formField{boolean: true, getBool: get} }
func textField(get func(*Form) *string) formField { return formField{getText: get} }

// formFields is keyed by the json field names.
var formFields = map[string]formField{
	"date_or_day":                      textField(func(f *Form) *string { return &f.DateOrDay }),
	"animal_observed_on_time":          boolField(func(f *Form) *bool { return &f.AnimalObservedOnTime }),
	"clean_drinking_water_provided":    boolField(func(f *Form) *bool { return &f.CleanDrinkingWaterProvided }),
	"enclosure_cleaned_properly":       boolField(func(f *Form) *bool { return &f.EnclosureCleanedProperly }),
	"normal_behaviour_status":          boolField(func(f *Form) *bool { return &f.NormalBehaviourStatus }),
	"normal_behaviour_details":         textField(func(f *Form) *string { return &f.NormalBehaviourDetails }),
	"feed_and_supplements_available":   boolField(func(f *Form) *bool { return &f.FeedAndSupplementsAvailable }),
	"feed_given_as_prescribed":         boolField(func(f *Form) *bool { return &f.FeedGivenAsPrescribed }),
	"other_animal_requirements":        textField(func(f *Form) *string { return &f.OtherAnimalRequirements }),
	"incharge_signature":               textField(func(f *Form) *string { return &f.InchargeSignature }),
	"daily_animal_health_monitoring":   textField(func(f *Form) *string { return &f.DailyAnimalHealthMonitoring }),
	"carnivorous_animal_feeding_chart": textField(func(f *Form) *string { return &f.CarnivorousAnimalFeedingChart }),
	"medicine_stock_register":          textField(func(f *Form) *string { return &f.MedicineStockRegister }),
	"daily_wildlife_monitoring":        textField(func(f *Form) *string { return &f.DailyWildlifeMonitoring }),
}

// IsBoolField reports whether name is a checklist field. ok is false for unknown names.
func IsBoolField(name string) (isBool, ok bool) {
	f, ok := formFields[name]
	return f.boolean, ok
}

// Set assigns one field by its json name. Booleans accept bool, text fields
// accept string.
func (f *Form) Set(name string, value any) error {
	field, ok := formFields[name]
	if !ok {
		return invalidField(name, "unknown field")
	}
	if field.boolean {
		v, ok := value.(bool)
		if !ok {
			return invalidField(name, fmt.Sprintf("expected boolean, got %T", value))
		}
		*field.getBool(f) = v
		return nil
	}
	v, ok := value.(string)
	if !ok {
		return invalidField(name, fmt.Sprintf("expected text, got %T", value))
	}
	*field.getText(f) = v
	return nil
}

func invalidField(name, reason string) error {
	return errors.New(ErrInvalidField).
		Component("capture").
		Category(errors.CategoryValidation).
		Context(ContextMessageID, string(i18n.MsgInvalidField)).
		Context("field", name).
		Context("reason", reason).
		Build()
}
