package hubspot

// searchRequest is the body of POST /crm/v3/objects/contacts/search
type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
}

type filterGroup struct {
	Filters []filter `json:"filters"`
}

type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

// searchResponse carries the matches of a contact search
type searchResponse struct {
	Total   int            `json:"total"`
	Results []objectResult `json:"results"`
}

type objectResult struct {
	ID string `json:"id"`
}

// objectRequest creates or patches a CRM object
type objectRequest struct {
	Properties   map[string]string `json:"properties"`
	Associations []association     `json:"associations,omitempty"`
}

type association struct {
	To    associationTarget `json:"to"`
	Types []associationType `json:"types"`
}

type associationTarget struct {
	ID string `json:"id"`
}

type associationType struct {
	AssociationCategory string `json:"associationCategory"`
	AssociationTypeID   int    `json:"associationTypeId"`
}

// objectResponse is the common shape of create/patch responses
type objectResponse struct {
	ID string `json:"id"`
}

// apiError is HubSpot's error envelope
type apiError struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// WebhookEvent is one entry of a HubSpot webhook delivery
type WebhookEvent struct {
	ObjectID         int64  `json:"objectId"`
	SubscriptionType string `json:"subscriptionType"`
	PropertyName     string `json:"propertyName"`
	PropertyValue    string `json:"propertyValue"`
	OccurredAt       int64  `json:"occurredAt"`
}
