package numericable

import (
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/grez-lucas/numericable-scraper/internal/logging"
)

// instrumentClient logs every request at debug level. Only the URL path is
// logged; query strings carry the access token.
func instrumentClient(client *resty.Client, log logging.Logger) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		log.Debug("start request",
			logging.F(logging.FieldMethod, req.Method),
			logging.F(logging.FieldURL, redactURL(req.URL)),
		)
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		log.Debug("request succeeded",
			logging.F(logging.FieldMethod, res.Request.Method),
			logging.F(logging.FieldURL, redactURL(res.Request.URL)),
			logging.F(logging.FieldStatus, res.StatusCode()),
			logging.F(logging.FieldDuration, res.Time().Milliseconds()),
		)
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		log.WithError(err).Warn("request failed",
			logging.F(logging.FieldMethod, req.Method),
			logging.F(logging.FieldURL, redactURL(req.URL)),
		)
	})
}

func redactURL(raw string) string {
	path, _, _ := strings.Cut(raw, "?")
	return path
}
