package catalogimport

type ImportRequest struct {
	Text   string `json:"text" binding:"required"`
	DryRun bool   `json:"dryRun"`
}

type ImportHistoryResponse struct {
	Items []ImportRunResponse `json:"items"`
}

type ImportRunResponse struct {
	ID                uint    `json:"id"`
	Status            string  `json:"status"`
	Source            string  `json:"source"`
	DryRun            bool    `json:"dryRun"`
	TriggeredBy       string  `json:"triggeredBy"`
	TriggeredByUserId *int    `json:"triggeredByUserId"`
	StartedAt         *string `json:"startedAt"`
	FinishedAt        *string `json:"finishedAt"`
	DurationMs        int64   `json:"durationMs"`
	CategoriesCreated int     `json:"categoriesCreated"`
	ConceptsCreated   int     `json:"conceptsCreated"`
	ErrorCount        int     `json:"errorCount"`
	ParentRunId       *uint   `json:"parentRunId"`
}

type ImportRunDetailResponse struct {
	ImportRunResponse
	Summary *Summary              `json:"summary,omitempty"`
	Errors  []ImportErrorResponse `json:"errors"`
}

type ImportErrorResponse struct {
	ID         uint   `json:"id"`
	EntityType string `json:"entityType"`
	Code       string `json:"code"`
	Line       int    `json:"line"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type ImportPubSubPayload struct {
	RunId         uint   `json:"run_id"`
	BusinessId    string `json:"business_id"`
	CorrelationId string `json:"correlation_id,omitempty"`
}
