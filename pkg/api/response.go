// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"

	"github.com/quarrylabs/quarry/pkg/logger"
	"github.com/quarrylabs/quarry/pkg/s3api/s3err"
)

// statusRecorder captures the status code written downstream so metrics
// can label by it.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.statusCode == 0 {
		w.statusCode = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return
	}
	if err := xml.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode xml response")
	}
}

func writeXMLError(w http.ResponseWriter, info *RequestInfo, code s3err.ErrorCode) {
	resource := "/" + info.Bucket
	if info.Key != "" {
		resource += "/" + info.Key
	}
	body := code.ToErrorResponse(resource)
	body.RequestID = info.RequestID
	writeXML(w, code.HTTPStatusCode(), body)
}

// parsedRange is a byte range from a Range header. End is inclusive and
// only meaningful when HasEnd is set.
type parsedRange struct {
	Start  int64
	End    int64
	HasEnd bool
}

// parseRangeHeader parses "bytes=start-[end]". Suffix ranges and multiple
// ranges are not supported and report ok=false, as do malformed values.
func parseRangeHeader(value string) (r parsedRange, ok bool) {
	spec, found := strings.CutPrefix(value, "bytes=")
	if !found || strings.Contains(spec, ",") {
		return r, false
	}
	startStr, endStr, found := strings.Cut(spec, "-")
	if !found || startStr == "" {
		return r, false
	}

	var err error
	if r.Start, err = strconv.ParseInt(startStr, 10, 64); err != nil || r.Start < 0 {
		return r, false
	}
	if endStr != "" {
		if r.End, err = strconv.ParseInt(endStr, 10, 64); err != nil || r.End < r.Start {
			return r, false
		}
		r.HasEnd = true
	}
	return r, true
}
