package handlers

import (
	"github.com/ohler55/ojg/oj"

	"github.com/fixserve/fixserve/pkg/httperr"
	"github.com/fixserve/fixserve/pkg/request"
	"github.com/fixserve/fixserve/pkg/response"
	"github.com/fixserve/fixserve/pkg/router"
)

// Func is a function-style handler. Its return value is normalized onto the
// response: nil, a bare body, a HeadersBody, a StatusHeadersBody, or the
// equivalent 2- or 3-element []any. Anything else is a contract violation.
type Func func(req *request.Request, resp *response.Response) (any, error)

// HeadersBody is the (headers, body) return shape. Headers merge additively
// onto the response.
type HeadersBody struct {
	Headers []response.Header
	Body    any
}

// StatusHeadersBody is the (status, headers, body) return shape. Status is
// an int code or a response.Status carrying a reason phrase.
type StatusHeadersBody struct {
	Status  any
	Headers []response.Header
	Body    any
}

type funcHandler struct {
	fn   Func
	json bool
}

// Fn wraps a function-style handler.
func Fn(fn Func) router.Handler {
	return funcHandler{fn: fn}
}

// JSON wraps a JSON-flavored handler: the body element is serialized to a
// JSON document and Content-Type defaults to application/json.
func JSON(fn Func) router.Handler {
	return funcHandler{fn: fn, json: true}
}

func (h funcHandler) Handle(req *request.Request, resp *response.Response) error {
	rv, err := h.fn(req, resp)
	if err != nil {
		return err
	}
	return normalize(rv, resp, h.json)
}

// Normalize applies the return-value contract to resp for callers that
// dispatch outside a wrapped handler, such as the HTTP/2 adapter invoking a
// script's main entry point.
func Normalize(rv any, resp *response.Response) error {
	return normalize(rv, resp, false)
}

// normalize maps a handler return value onto the canonical
// (status, headers, body) triple.
func normalize(rv any, resp *response.Response, json bool) error {
	switch v := rv.(type) {
	case nil:
		// Explicitly empty: no Content-Length at all.
		resp.OmitContentLength()
		return nil
	case HeadersBody:
		addHeaders(resp, v.Headers)
		return writeBody(resp, v.Body, json)
	case StatusHeadersBody:
		if err := applyStatus(resp, v.Status); err != nil {
			return err
		}
		addHeaders(resp, v.Headers)
		return writeBody(resp, v.Body, json)
	case []any:
		switch len(v) {
		case 2:
			headers, err := asHeaders(v[0])
			if err != nil {
				return err
			}
			addHeaders(resp, headers)
			return writeBody(resp, v[1], json)
		case 3:
			if err := applyStatus(resp, v[0]); err != nil {
				return err
			}
			headers, err := asHeaders(v[1])
			if err != nil {
				return err
			}
			addHeaders(resp, headers)
			return writeBody(resp, v[2], json)
		default:
			return httperr.Internal("handler returned a %d-element response", len(v))
		}
	default:
		return writeBody(resp, rv, json)
	}
}

func applyStatus(resp *response.Response, status any) error {
	switch s := status.(type) {
	case int:
		resp.SetStatus(s)
	case response.Status:
		resp.SetStatusReason(s.Code, s.Reason)
	default:
		return httperr.Internal("handler returned invalid status element %T", status)
	}
	return nil
}

func asHeaders(v any) ([]response.Header, error) {
	switch h := v.(type) {
	case nil:
		return nil, nil
	case []response.Header:
		return h, nil
	default:
		return nil, httperr.Internal("handler returned invalid headers element %T", v)
	}
}

func addHeaders(resp *response.Response, headers []response.Header) {
	for _, h := range headers {
		resp.AddHeader(h.Name, h.Value)
	}
}

func writeBody(resp *response.Response, body any, json bool) error {
	if json {
		if _, ok := resp.GetHeader("Content-Type"); !ok {
			resp.SetHeader("Content-Type", "application/json")
		}
		resp.SetBody([]byte(oj.JSON(body, &oj.Options{Sort: true})))
		return nil
	}

	switch b := body.(type) {
	case string:
		resp.SetBody([]byte(b))
	case []byte:
		resp.SetBody(b)
	case nil:
		resp.OmitContentLength()
	default:
		return httperr.Internal("handler returned invalid body element %T", body)
	}
	return nil
}
