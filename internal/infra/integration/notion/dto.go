package notion

// Wire types for the parts of the Notion API the lead store uses.

type databaseResponse struct {
	Object     string                      `json:"object"`
	ID         string                      `json:"id"`
	Properties map[string]databaseProperty `json:"properties"`
}

type databaseProperty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type queryRequest struct {
	Filter   *queryFilter `json:"filter,omitempty"`
	PageSize int          `json:"page_size,omitempty"`
}

type queryFilter struct {
	Property string      `json:"property"`
	Email    *textFilter `json:"email,omitempty"`
	RichText *textFilter `json:"rich_text,omitempty"`
	Title    *textFilter `json:"title,omitempty"`
}

type textFilter struct {
	Equals string `json:"equals"`
}

type queryResponse struct {
	Results []pageResponse `json:"results"`
	HasMore bool           `json:"has_more"`
}

type createPageRequest struct {
	Parent     pageParent               `json:"parent"`
	Properties map[string]propertyValue `json:"properties"`
}

type pageParent struct {
	DatabaseID string `json:"database_id"`
}

type pageResponse struct {
	Object     string                   `json:"object"`
	ID         string                   `json:"id"`
	URL        string                   `json:"url"`
	Properties map[string]propertyValue `json:"properties"`
}

// propertyValue is used both to read page properties and to write them.
type propertyValue struct {
	Type     string       `json:"type,omitempty"`
	Title    []richText   `json:"title,omitempty"`
	RichText []richText   `json:"rich_text,omitempty"`
	Email    *string      `json:"email,omitempty"`
	Select   *selectValue `json:"select,omitempty"`
	Status   *selectValue `json:"status,omitempty"`
}

type richText struct {
	Type      string       `json:"type,omitempty"`
	Text      *textContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

type textContent struct {
	Content string `json:"content"`
}

type selectValue struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
