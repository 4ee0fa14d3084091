// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/quarrylabs/quarry/pkg/auth"
	"github.com/quarrylabs/quarry/pkg/handler"
	"github.com/quarrylabs/quarry/pkg/logger"
	"github.com/quarrylabs/quarry/pkg/s3api/s3action"
	"github.com/quarrylabs/quarry/pkg/s3api/s3consts"
	"github.com/quarrylabs/quarry/pkg/s3api/s3err"
	"github.com/quarrylabs/quarry/pkg/s3api/s3types"
	"github.com/quarrylabs/quarry/pkg/storage"
	"github.com/quarrylabs/quarry/pkg/types"
)

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	recorder := &statusRecorder{ResponseWriter: w}

	bucket, key := splitPath(r.URL.Path)
	info := &RequestInfo{
		RequestID: uuid.NewString(),
		AccessKey: extractAccessKey(r),
		Bucket:    bucket,
		Key:       key,
		Action:    classify(r, bucket, key),
	}
	recorder.Header().Set(s3consts.XAmzRequestID, info.RequestID)

	reqLogger := logger.Ctx(r.Context()).With().
		Str("request_id", info.RequestID).
		Str("action", info.Action.String()).
		Logger()
	ctx := logger.WithLogger(r.Context(), &reqLogger)

	defer func() {
		status := recorder.statusCode
		// A client that went away mid-request is not a server failure.
		if status == http.StatusInternalServerError && errors.Is(r.Context().Err(), context.Canceled) {
			status = 0
		}
		code := strconv.Itoa(status)
		s.metricsRequest.WithLabelValues(info.Action.String(), code).Inc()
		s.metricsRequestDuration.WithLabelValues(info.Action.String(), code).Observe(time.Since(start).Seconds())
	}()

	version, err := handler.ParseVersionID(r.URL.Query().Get("versionId"))
	if err != nil {
		s.writeError(recorder, r, info, s3err.ErrInvalidVersionID, nil)
		return
	}

	m, err := s.engine.Build(ctx, auth.AccessRequest{
		AccessKey: info.AccessKey,
		Bucket:    info.Bucket,
		Key:       objectKeyFor(info),
		Version:   version,
	})
	if err != nil {
		reqLogger.Error().Err(err).Msg("failed to build request metadata")
		s.writeError(recorder, r, info, s3err.ErrInternalError, nil)
		return
	}

	if herr := s.dispatch(ctx, recorder, r, info, m, version); herr != nil {
		var code s3err.ErrorCode
		if !errors.As(herr, &code) {
			reqLogger.Error().Err(herr).Msg("handler failure")
			code = s3err.ErrInternalError
		}
		s.writeError(recorder, r, info, code, m)
	}
}

// objectKeyFor suppresses object resolution for bucket-scoped actions so
// the engine does not probe keys that are not being addressed.
func objectKeyFor(info *RequestInfo) string {
	if info.Action.IsObject() {
		return info.Key
	}
	return ""
}

// writeError emits the mapped XML error body, or a bare status for HEAD.
// Tombstone lookups carry the delete-marker header alongside the error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, info *RequestInfo, code s3err.ErrorCode, m *auth.RequestMetadata) {
	if m != nil && m.Object != nil && m.Object.DeleteMarker && code == s3err.ErrNoSuchKey {
		w.Header().Set(s3consts.XAmzDeleteMarker, "true")
		w.Header().Set(s3consts.XAmzVersionID, handler.FormatVersionID(m.Object.Version))
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(code.HTTPStatusCode())
		return
	}
	writeXMLError(w, info, code)
}

func (s *Server) dispatch(ctx context.Context, w http.ResponseWriter, r *http.Request, info *RequestInfo, m *auth.RequestMetadata, version int64) error {
	query := r.URL.Query()

	switch info.Action {
	case s3action.ListBuckets:
		result, err := s.service.ListBuckets(ctx, m)
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, result)

	case s3action.CreateBucket:
		_, err := s.bucket.Create(ctx, m, handler.CreateBucketRequest{
			Name:      info.Bucket,
			CannedACL: r.Header.Get(s3consts.XAmzACL),
			Headers:   r.Header,
		})
		if err != nil {
			return err
		}
		w.Header().Set("Location", "/"+info.Bucket)
		w.WriteHeader(http.StatusOK)

	case s3action.DeleteBucket:
		if err := s.bucket.Delete(ctx, m); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)

	case s3action.HeadBucket:
		if err := s.bucket.Head(ctx, m); err != nil {
			return err
		}
		w.WriteHeader(http.StatusOK)

	case s3action.GetBucketLocation:
		result, err := s.bucket.GetLocation(ctx, m)
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, result)

	case s3action.ListObjects:
		result, err := s.bucket.ListObjects(ctx, m, listRequestFrom(query))
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, result)

	case s3action.ListObjectVersions:
		result, err := s.bucket.ListVersions(ctx, m, listRequestFrom(query))
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, result)

	case s3action.GetBucketVersioning:
		result, err := s.bucket.GetVersioning(ctx, m)
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, result)

	case s3action.PutBucketVersioning:
		var cfg s3types.VersioningConfiguration
		if err := decodeXMLBody(r, &cfg); err != nil {
			return err
		}
		if err := s.bucket.SetVersioning(ctx, m, &cfg); err != nil {
			return err
		}
		w.WriteHeader(http.StatusOK)

	case s3action.GetBucketTagging:
		result, err := s.bucket.GetTags(ctx, m)
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, result)

	case s3action.PutBucketTagging:
		var tagging s3types.Tagging
		if err := decodeXMLBody(r, &tagging); err != nil {
			return err
		}
		if err := s.bucket.SetTags(ctx, m, &tagging); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)

	case s3action.DeleteBucketTagging:
		if err := s.bucket.DeleteTags(ctx, m); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)

	case s3action.GetBucketACL:
		result, err := s.bucket.GetACL(ctx, m)
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, result)

	case s3action.PutBucketACL:
		req, err := aclRequestFrom(r)
		if err != nil {
			return err
		}
		if err := s.bucket.SetACL(ctx, m, req); err != nil {
			return err
		}
		w.WriteHeader(http.StatusOK)

	case s3action.ListMultipartUploads:
		maxUploads, _ := strconv.Atoi(query.Get("max-uploads"))
		result, err := s.object.ListUploads(ctx, m, query.Get("prefix"), maxUploads)
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, result)

	case s3action.PutObject:
		rec, err := s.object.Put(ctx, m, handler.PutObjectRequest{
			Key:         info.Key,
			ContentType: r.Header.Get("Content-Type"),
			Body:        r.Body,
			CannedACL:   r.Header.Get(s3consts.XAmzACL),
			Headers:     r.Header,
		})
		if err != nil {
			return err
		}
		w.Header().Set("ETag", `"`+rec.ETag+`"`)
		if m.Bucket.EnableVersioning {
			w.Header().Set(s3consts.XAmzVersionID, handler.FormatVersionID(rec.Version))
		}
		w.WriteHeader(http.StatusOK)

	case s3action.GetObject:
		return s.serveObject(ctx, w, r, info, m, version, false)

	case s3action.HeadObject:
		return s.serveObject(ctx, w, r, info, m, version, true)

	case s3action.DeleteObject:
		result, err := s.object.Delete(ctx, m, handler.GetObjectRequest{Key: info.Key, Version: version})
		if err != nil {
			return err
		}
		w.Header().Set(s3consts.XAmzVersionID, handler.FormatVersionID(result.VersionID))
		if result.DeleteMarker {
			w.Header().Set(s3consts.XAmzDeleteMarker, "true")
		}
		w.WriteHeader(http.StatusNoContent)

	case s3action.DeleteObjects:
		var req s3types.DeleteObjectsRequest
		if err := decodeXMLBody(r, &req); err != nil {
			return err
		}
		result, err := s.object.DeleteMultiple(ctx, m, &req)
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, result)

	case s3action.GetObjectTagging:
		result, err := s.object.GetTags(ctx, m, handler.GetObjectRequest{Key: info.Key, Version: version})
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, result)

	case s3action.PutObjectTagging:
		var tagging s3types.Tagging
		if err := decodeXMLBody(r, &tagging); err != nil {
			return err
		}
		if err := s.object.SetTags(ctx, m, handler.GetObjectRequest{Key: info.Key, Version: version}, &tagging); err != nil {
			return err
		}
		w.WriteHeader(http.StatusOK)

	case s3action.DeleteObjectTagging:
		if err := s.object.DeleteTags(ctx, m, handler.GetObjectRequest{Key: info.Key, Version: version}); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)

	case s3action.GetObjectACL:
		result, err := s.object.GetACL(ctx, m, handler.GetObjectRequest{Key: info.Key, Version: version})
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, result)

	case s3action.PutObjectACL:
		req, err := aclRequestFrom(r)
		if err != nil {
			return err
		}
		if err := s.object.SetACL(ctx, m, handler.GetObjectRequest{Key: info.Key, Version: version}, req); err != nil {
			return err
		}
		w.WriteHeader(http.StatusOK)

	case s3action.CreateMultipartUpload:
		up, err := s.object.InitiateUpload(ctx, m, info.Key)
		if err != nil {
			return err
		}
		writeXML(w, http.StatusOK, initiateUploadResult(info.Bucket, up))

	default:
		return s3err.ErrNotImplemented
	}
	return nil
}

// serveObject handles GetObject and HeadObject, including range reads.
func (s *Server) serveObject(ctx context.Context, w http.ResponseWriter, r *http.Request, info *RequestInfo, m *auth.RequestMetadata, version int64, headOnly bool) error {
	req := handler.GetObjectRequest{Key: info.Key, Version: version}

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" && !headOnly {
		rng, ok := parseRangeHeader(rangeHeader)
		if !ok {
			return s3err.ErrInvalidRange
		}
		result, err := s.object.GetRange(ctx, m, handler.RangeRequest{
			Key:     info.Key,
			Version: version,
			Start:   rng.Start,
			End:     rng.End,
			HasEnd:  rng.HasEnd,
		})
		if err != nil {
			return err
		}
		defer result.Body.Close()

		setObjectHeaders(w, result.Record)
		w.Header().Set("Content-Length", strconv.FormatInt(result.Length, 10))
		w.Header().Set("Content-Range",
			"bytes "+strconv.FormatInt(result.Start, 10)+"-"+strconv.FormatInt(result.End, 10)+
				"/"+strconv.FormatInt(result.Record.ContentLength, 10))
		w.WriteHeader(http.StatusPartialContent)
		copyBody(ctx, w, result.Body)
		return nil
	}

	var result *handler.GetObjectResult
	var err error
	if headOnly {
		result, err = s.object.Head(ctx, m, req)
	} else {
		result, err = s.object.Get(ctx, m, req)
	}
	if err != nil {
		return err
	}

	setObjectHeaders(w, result.Record)
	w.Header().Set("Content-Length", strconv.FormatInt(result.Record.ContentLength, 10))
	w.WriteHeader(http.StatusOK)
	if result.Body != nil {
		defer result.Body.Close()
		copyBody(ctx, w, result.Body)
	}
	return nil
}

func setObjectHeaders(w http.ResponseWriter, rec *types.ObjectRecord) {
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("ETag", `"`+rec.ETag+`"`)
	w.Header().Set("Last-Modified", rec.LastUpdate.UTC().Format(http.TimeFormat))
	w.Header().Set(s3consts.XAmzVersionID, handler.FormatVersionID(rec.Version))
}

func copyBody(ctx context.Context, w io.Writer, body io.Reader) {
	buf := storage.GetCopyBuffer()
	defer storage.PutCopyBuffer(buf)
	if _, err := io.CopyBuffer(w, body, buf); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("object stream interrupted")
	}
}

func listRequestFrom(query map[string][]string) handler.ListObjectsRequest {
	get := func(name string) string {
		if v, ok := query[name]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}
	maxKeys, _ := strconv.Atoi(get("max-keys"))
	marker := get("marker")
	if marker == "" {
		marker = get("continuation-token")
	}
	if marker == "" {
		marker = get("key-marker")
	}
	return handler.ListObjectsRequest{
		Prefix:    get("prefix"),
		Delimiter: get("delimiter"),
		Marker:    marker,
		MaxKeys:   maxKeys,
	}
}

func aclRequestFrom(r *http.Request) (handler.SetACLRequest, error) {
	req := handler.SetACLRequest{
		CannedACL: r.Header.Get(s3consts.XAmzACL),
		Headers:   r.Header,
	}
	if r.ContentLength != 0 {
		var policy s3types.AccessControlPolicy
		if err := decodeXMLBody(r, &policy); err != nil {
			return req, err
		}
		req.Policy = &policy
	}
	return req, nil
}

func decodeXMLBody(r *http.Request, v any) error {
	if err := xml.NewDecoder(r.Body).Decode(v); err != nil {
		return s3err.ErrMalformedXML
	}
	return nil
}

// initiateUploadResult is the CreateMultipartUpload response body.
type initiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Xmlns    string   `xml:"xmlns,attr"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

func initiateUploadResult(bucket string, up *types.Upload) *initiateMultipartUploadResult {
	return &initiateMultipartUploadResult{
		Xmlns:    s3consts.XMLNamespace,
		Bucket:   bucket,
		Key:      up.Key,
		UploadID: up.GUID,
	}
}
