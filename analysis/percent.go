package analysis

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Percent is an achievement percentage held to two decimal places.
// It marshals as a fixed two-decimal JSON string ("233.33", "0.00").
type Percent struct {
	value decimal.Decimal
}

// AchievementPercent is achieved/planned*100 rounded half-up to 2 places,
// or zero when nothing was planned.
func AchievementPercent(achieved, planned int) Percent {
	if planned <= 0 {
		return Percent{value: decimal.Zero}
	}
	v := decimal.NewFromInt(int64(achieved)).Mul(hundred).Div(decimal.NewFromInt(int64(planned)))
	return Percent{value: v.Round(2)}
}

func (p Percent) Decimal() decimal.Decimal {
	return p.value
}

func (p Percent) String() string {
	return p.value.StringFixed(2)
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// tolerate bare numbers
		s = string(b)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	p.value = d.Round(2)
	return nil
}
