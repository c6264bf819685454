package executors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chatflow-io/chatflow/pkg/gateway"
)

var ErrMissingURL = errors.New("execute-request requires a url parameter")

type ExecuteRequest struct {
	platform gateway.Platform
}

func (e *ExecuteRequest) Execute(ctx context.Context, ec *Context) error {
	url := ec.StringParam("url")
	if url == "" {
		return ErrMissingURL
	}

	method := strings.ToUpper(ec.StringParam("method"))
	if method == "" {
		method = "GET"
	}

	headers := make(map[string]string)
	for name, value := range ec.MapParam("headers") {
		if s, ok := value.(string); ok {
			headers[name] = s
		}
	}

	status, response, err := e.platform.Do(ctx, method, url, headers, ec.Activity.Parameters["body"])
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}

	ec.SetOutput("status", status)
	ec.SetOutput("response", response)

	return nil
}
