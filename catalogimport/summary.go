package catalogimport

const (
	EntityLine     = "line"
	EntityCategory = "category"
	EntityConcept  = "concept"
)

const (
	ErrCodeUnrecognizedLine   = "UNRECOGNIZED_LINE"
	ErrCodeDuplicateCode      = "DUPLICATE_CODE"
	ErrCodeInvalidItem        = "INVALID_ITEM"
	ErrCodeCreateFailed       = "CREATE_FAILED"
	ErrCodeParentNotPersisted = "PARENT_NOT_PERSISTED"
	ErrCodeCatalogUnavailable = "CATALOG_UNAVAILABLE"
	ErrCodeImportInProgress   = "IMPORT_IN_PROGRESS"
)

const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

type ImportError struct {
	Line       int    `json:"line,omitempty"`
	Code       string `json:"code,omitempty"`
	EntityType string `json:"entityType"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
}

// Summary is the end-of-run report handed back to the caller.
type Summary struct {
	DryRun                bool          `json:"dryRun"`
	RecordsRead           int           `json:"recordsRead"`
	CategoriesCreated     int           `json:"categoriesCreated"`
	CategoriesSkipped     int           `json:"categoriesSkipped"`
	CategoriesFailed      int           `json:"categoriesFailed"`
	CategoriesSynthesized int           `json:"categoriesSynthesized"`
	ConceptsCreated       int           `json:"conceptsCreated"`
	ConceptsSkipped       int           `json:"conceptsSkipped"`
	ConceptsFailed        int           `json:"conceptsFailed"`
	LinesUnrecognized     int           `json:"linesUnrecognized"`
	Warnings              int           `json:"warnings"`
	Errors                []ImportError `json:"errors"`
}

func (s *Summary) addError(e ImportError) {
	s.Errors = append(s.Errors, e)
}

func (s *Summary) Created() int {
	return s.CategoriesCreated + s.ConceptsCreated
}

func (s *Summary) Skipped() int {
	return s.CategoriesSkipped + s.ConceptsSkipped
}

func (s *Summary) Failed() int {
	return s.CategoriesFailed + s.ConceptsFailed + s.LinesUnrecognized
}

// Status is failed when nothing could be placed, partial when some entries failed.
func (s *Summary) Status() string {
	switch {
	case len(s.Errors) == 0:
		return StatusSuccess
	case s.Created()+s.Skipped() == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}
