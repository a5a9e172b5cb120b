package model

// JobLevel is a seniority band. Rank 1 is the most senior.
type JobLevel struct {
	ID           string `json:"job_level_id" yaml:"id"`
	Rank         int    `json:"job_level" yaml:"rank"`
	Label        string `json:"label" yaml:"label"`
	TitlePattern string `json:"title_pattern,omitempty" yaml:"title_pattern"`
}

// FunctionTaxon is one row of the function taxonomy. F0, F1 and F2 are only
// meaningful together.
type FunctionTaxon struct {
	ID        string `json:"function_taxonomy_id" yaml:"id"`
	JobRoleID string `json:"job_role_id" yaml:"job_role_id"`
	JobRole   string `json:"job_role" yaml:"job_role"`
	F0        string `json:"f0" yaml:"f0"`
	F1        string `json:"f1" yaml:"f1"`
	F2        string `json:"f2,omitempty" yaml:"f2"`
}

// Industry is an industry row with its parent vertical.
type Industry struct {
	ID           string `json:"industry_id" yaml:"id"`
	VerticalID   string `json:"vertical_id" yaml:"vertical_id"`
	VerticalCode string `json:"vertical_code" yaml:"vertical_code"`
	Name         string `json:"industry_name" yaml:"name"`
}
