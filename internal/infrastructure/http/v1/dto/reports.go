package dto

// ReportQuery carries the optional knobs shared by the report endpoints.
type ReportQuery struct {
	Threshold  *int64  `form:"threshold" binding:"omitempty,min=0"`
	WindowDays *int    `form:"days" binding:"omitempty,min=0,max=3650"`
	AsOf       *string `form:"asOf"`
}
