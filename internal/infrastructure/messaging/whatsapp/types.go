package whatsapp

// sendRequest is the body of POST /{phone-number-id}/messages
type sendRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type templatePayload struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []component `json:"components,omitempty"`
}

type language struct {
	Code string `json:"code"`
}

type component struct {
	Type       string      `json:"type"`
	Parameters []parameter `json:"parameters"`
}

type parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// sendResponse carries the IDs of accepted messages
type sendResponse struct {
	Messages []sentMessage `json:"messages"`
}

type sentMessage struct {
	ID string `json:"id"`
}

// errorResponse is the Cloud API error envelope
type errorResponse struct {
	Error graphError `json:"error"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// StatusUpdate is one message status change from a delivery webhook
type StatusUpdate struct {
	WAMessageID string
	Status      string
	Phone       string
	ErrorCode   int
}

// webhookPayload mirrors the Cloud API webhook envelope
type webhookPayload struct {
	Entry []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	Statuses []webhookStatus `json:"statuses"`
}

type webhookStatus struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	RecipientID string         `json:"recipient_id"`
	Errors      []webhookError `json:"errors"`
}

type webhookError struct {
	Code  int    `json:"code"`
	Title string `json:"title"`
}
