package domain

type PromoType string

const (
	PromoPercentage PromoType = "percentage"
	PromoFixed      PromoType = "fixed"
)

// PromoCode is a registry entry. Value is a whole percent for percentage promos and cents for fixed ones.
type PromoCode struct {
	Code     string    `json:"code" mapstructure:"code"`
	Type     PromoType `json:"type" mapstructure:"type"`
	Value    int64     `json:"value" mapstructure:"value"`
	MinOrder Money     `json:"min_order" mapstructure:"min_order"`
}
