package zoho

// tokenResponse is the body of a token refresh. Zoho reports OAuth errors
// with HTTP 200 and an error field, so both shapes share one struct.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
}

// recordEnvelope wraps every record write: {"data": [ ... ]}
type recordEnvelope struct {
	Data []map[string]interface{} `json:"data"`
}

// writeResponse carries the per-record results of a create or update
type writeResponse struct {
	Data []writeResult `json:"data"`
}

type writeResult struct {
	Code    string       `json:"code"`
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Details writeDetails `json:"details"`
}

type writeDetails struct {
	ID string `json:"id"`
}

// searchResponse carries the matches of a Leads search
type searchResponse struct {
	Data []searchResult `json:"data"`
}

type searchResult struct {
	ID string `json:"id"`
}

// apiError is Zoho's error envelope for non-2xx responses
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
