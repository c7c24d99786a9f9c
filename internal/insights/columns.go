package insights

// ColumnSpec is a display hint for the dashboard table. It carries no contract
// beyond presentation.
type ColumnSpec struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Width  string `json:"width"`
	Format string `json:"format,omitempty"`
}

func DefaultColumns() []ColumnSpec {
	return []ColumnSpec{
		{Key: "id", Label: "ID", Width: "small"},
		{Key: "name", Label: "Event Name", Width: "large"},
		{Key: "datetime", Label: "Event Date", Width: "medium", Format: "YYYY-MM-DD HH:mm"},
		{Key: "on_sale_date", Label: "On Sale Date", Width: "medium", Format: "YYYY-MM-DD"},
		{Key: "location", Label: "Location", Width: "medium"},
		{Key: "price", Label: "Price", Width: "small", Format: "$%.2f"},
		{Key: "secondary_price", Label: "Secondary Price", Width: "small", Format: "$%.2f"},
		{Key: "percentage_difference", Label: "Percentage Difference", Width: "small", Format: "%.2f%%"},
		{Key: "has_secondary_market", Label: "Has Secondary Market", Width: "small"},
		{Key: "days_until_event", Label: "Days Until Event", Width: "small", Format: "%d"},
		{Key: "oos_zones", Label: "OOS Zones", Width: "large"},
		{Key: "zone_count", Label: "Zone Count", Width: "small", Format: "%d"},
		{Key: "monitoring", Label: "Monitoring", Width: "small"},
		{Key: "highlighted", Label: "Highlighted", Width: "small"},
	}
}
