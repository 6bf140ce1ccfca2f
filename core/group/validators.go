package group

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mainino/core"
)

var (
	slotsOverlapTag  = "slotsnooverlap"
	slotsOverlapText = "time slots must not overlap on the same day"
)

// InitValidators registers group-specific validations and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(newGroupStructValidation, NewGroup{})
	core.RegisterCustomTranslation(validate, translator, slotsOverlapTag, slotsOverlapText)
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	return validate.Struct(ng)
}

func newGroupStructValidation(sl validator.StructLevel) {
	ng := sl.Current().Interface().(NewGroup)

	type interval struct{ start, end int }
	seen := make(map[string][]interval)
	for _, slot := range ng.TimeSlots {
		day, ok := slot.Weekday()
		if !ok {
			continue // `dive` field validation reports this
		}
		start, end, ok := slot.Minutes()
		if !ok {
			continue
		}
		for _, iv := range seen[day.String()] {
			if start < iv.end && iv.start < end {
				sl.ReportError(ng.TimeSlots, "TimeSlots", "time_slots", slotsOverlapTag, "")
				return
			}
		}
		seen[day.String()] = append(seen[day.String()], interval{start, end})
	}
}
