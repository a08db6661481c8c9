package gateway

// Policy maps a tool identifier to its credit cost. Tools absent from
// the table cost defaultCost.
type Policy struct {
	costs map[string]int64
}

const defaultCost = 1

// DefaultPolicy returns the production cost table.
func DefaultPolicy() *Policy {
	return NewPolicy(map[string]int64{
		"live_tv":          1,
		"tamasha_otp":      2,
		"temp_email":       1,
		"youtube_download": 3,
		"image_enhance":    2,
		"phone_lookup":     1,
		"eyecon_lookup":    1,
	})
}

// NewPolicy builds a policy from an explicit cost table.
func NewPolicy(costs map[string]int64) *Policy {
	cp := make(map[string]int64, len(costs))
	for tool, cost := range costs {
		if cost > 0 {
			cp[tool] = cost
		}
	}
	return &Policy{costs: cp}
}

// Cost returns the credit cost of invoking the given tool.
func (p *Policy) Cost(tool string) int64 {
	if c, ok := p.costs[tool]; ok {
		return c
	}
	return defaultCost
}
