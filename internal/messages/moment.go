package messages

import "fmt"

// Moment is one of the three daily coaching windows.
type Moment string

const (
	MomentMorning Moment = "morning"
	MomentMidday  Moment = "midday"
	MomentEvening Moment = "evening"
)

// ParseMoment rejects unknown values instead of defaulting; a typo in a
// schedule must surface, not silently send morning messages at night.
func ParseMoment(s string) (Moment, error) {
	switch Moment(s) {
	case MomentMorning, MomentMidday, MomentEvening:
		return Moment(s), nil
	default:
		return "", fmt.Errorf("unknown moment: %q", s)
	}
}

func (m Moment) String() string {
	return string(m)
}
