package models

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"time"
)

const maxStackDepth = 32

// statusCoder is implemented by errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// httpStatuser matches error types exposing HTTPStatus, e.g. transport-agnostic API errors.
type httpStatuser interface {
	HTTPStatus() int
}

// FromException builds a record from a live error and an optional request snapshot.
// The request body is only read when the form has already been parsed.
func FromException(applicationName string, err error, r *http.Request, enrichers ...Enricher) *Error {
	if err == nil {
		err = errors.New("unknown error")
	}

	f := Fields{
		Type:    typeName(err),
		Source:  sourceOf(err),
		Message: err.Error(),
		Detail:  detailOf(err, stackTrace(3)),
		Time:    time.Now(),
	}
	if host, hostErr := os.Hostname(); hostErr == nil {
		f.HostName = host
	}

	var sc statusCoder
	var hs httpStatuser
	switch {
	case errors.As(err, &sc):
		f.StatusCode = sc.StatusCode()
	case errors.As(err, &hs):
		f.StatusCode = hs.HTTPStatus()
	}

	if r != nil {
		captureRequest(&f, r)
	}

	return NewError(applicationName, f, enrichers...)
}

func typeName(err error) string {
	return reflect.TypeOf(err).String()
}

// sourceOf returns the package path of the error's concrete type.
func sourceOf(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if pkg := t.PkgPath(); pkg != "" {
		return pkg
	}
	return "runtime"
}

func detailOf(err error, stack string) string {
	var sb strings.Builder
	sb.WriteString(typeName(err))
	sb.WriteString(": ")
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(inner) {
		fmt.Fprintf(&sb, " ---> %s: %s\n", typeName(inner), inner.Error())
	}

	sb.WriteString(stack)
	return sb.String()
}

// stackTrace captures the caller stack, skipping the first skip frames.
func stackTrace(skip int) string {
	var stack strings.Builder

	for i := skip; i < skip+maxStackDepth; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		funcName := "unknown"
		if fn != nil {
			funcName = fn.Name()
		}

		fmt.Fprintf(&stack, "   at %s in %s:%d\n", funcName, file, line)
	}

	return stack.String()
}

func captureRequest(f *Fields, r *http.Request) {
	if user, _, ok := r.BasicAuth(); ok {
		f.User = user
	}

	f.ServerVariables = serverVariables(r)
	f.QueryString = orderedQuery(r.URL)

	f.Form = NewCollection()
	if r.PostForm != nil {
		keys := make([]string, 0, len(r.PostForm))
		for k := range r.PostForm {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, v := range r.PostForm[k] {
				f.Form.Add(k, v)
			}
		}
	}

	f.Cookies = NewCollection()
	for _, c := range r.Cookies() {
		f.Cookies.Add(c.Name, c.Value)
	}
}

func serverVariables(r *http.Request) *Collection {
	sv := NewCollection()
	sv.Add("REQUEST_METHOD", r.Method)
	sv.Add("SERVER_PROTOCOL", r.Proto)
	sv.Add("REMOTE_ADDR", r.RemoteAddr)
	sv.Add("HTTP_HOST", r.Host)
	if r.URL != nil {
		sv.Add("URL", r.URL.Path)
		sv.Add("PATH_INFO", r.URL.Path)
		sv.Add("QUERY_STRING", r.URL.RawQuery)
	}
	if r.TLS != nil {
		sv.Add("HTTPS", "on")
	} else {
		sv.Add("HTTPS", "off")
	}

	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		if key == "HTTP_HOST" {
			continue
		}
		for _, v := range r.Header[name] {
			sv.Add(key, v)
		}
	}
	return sv
}

// orderedQuery keeps parameters in the order they appear in the raw query.
func orderedQuery(u *url.URL) *Collection {
	qs := NewCollection()
	if u == nil || u.RawQuery == "" {
		return qs
	}
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		qs.Add(key, value)
	}
	return qs
}
