package todo

// dateTimeTimeZone is Graph's wall-clock timestamp with a zone name.
type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// todoTask is the wire form of a Microsoft To Do task.
type todoTask struct {
	ID                string            `json:"id,omitempty"`
	Title             string            `json:"title,omitempty"`
	Status            string            `json:"status,omitempty"`
	CreatedDateTime   string            `json:"createdDateTime,omitempty"`
	CompletedDateTime *dateTimeTimeZone `json:"completedDateTime,omitempty"`
	DueDateTime       *dateTimeTimeZone `json:"dueDateTime,omitempty"`
	StartDateTime     *dateTimeTimeZone `json:"startDateTime,omitempty"`
}

type taskPage struct {
	Value    []todoTask `json:"value"`
	NextLink string     `json:"@odata.nextLink"`
}

type todoList struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	WellknownListName string `json:"wellknownListName"`
}

type listPage struct {
	Value    []todoList `json:"value"`
	NextLink string     `json:"@odata.nextLink"`
}

// patchTask is the body of a task update. Only set fields are sent.
type patchTask struct {
	Title  string `json:"title,omitempty"`
	Status string `json:"status,omitempty"`
}
