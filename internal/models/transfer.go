package models

// Result markers used in the response envelope.
const (
	ResultSuccess = "SUCCESS"
	ResultFail    = "FAIL"
)

// Transfer is the response envelope returned by the search endpoints.
type Transfer struct {
	Result    string     `json:"result"`
	Code      int        `json:"code"`
	Message   string     `json:"message"`
	ListCount *int       `json:"list_count,omitempty"`
	Data      []NewsItem `json:"data"`
}

// Success wraps items in a successful envelope.
func Success(items []NewsItem) Transfer {
	n := len(items)
	if items == nil {
		items = []NewsItem{}
	}
	return Transfer{Result: ResultSuccess, Code: 200, Message: "SUCCESS", ListCount: &n, Data: items}
}

// Failure builds a failed envelope with the given status code.
func Failure(code int, message string) Transfer {
	return Transfer{Result: ResultFail, Code: code, Message: message}
}

// DigestJob asks the worker to build and deliver a digest for one query.
type DigestJob struct {
	ID    string `json:"id"`
	Query string `json:"query"`
	Start int    `json:"start"`
	Since string `json:"since"`
}
