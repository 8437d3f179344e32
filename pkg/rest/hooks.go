package rest

// Hooks are pure observers fired around the executor's request and
// response boundary. They must never alter control flow or the
// returned outcome; swap them to feed any structured-logging or
// metrics backend.
type Hooks struct {
	OnRequestStart func(method, url string, meta map[string]interface{})
	OnRequestEnd   func(method, url string, resp *Response)
	OnException    func(method, url string, err error)
}

func (h Hooks) requestStart(method, url string, meta map[string]interface{}) {
	if h.OnRequestStart != nil {
		h.OnRequestStart(method, url, meta)
	}
}

func (h Hooks) requestEnd(method, url string, resp *Response) {
	if h.OnRequestEnd != nil {
		h.OnRequestEnd(method, url, resp)
	}
}

func (h Hooks) exception(method, url string, err error) {
	if h.OnException != nil {
		h.OnException(method, url, err)
	}
}
