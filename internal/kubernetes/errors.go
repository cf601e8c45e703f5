package kubernetes

import (
	"errors"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/otterscale/otterscale-watch/internal/core"
)

// wrapK8sError converts Kubernetes API errors that invalidate the
// resume cursor into *core.ErrCursorExpired, keeping the status
// mapping inside the adapter layer. Other errors are returned as-is.
func wrapK8sError(err error, cursor string) error {
	if err == nil {
		return nil
	}

	var apiStatus apierrors.APIStatus
	if !errors.As(err, &apiStatus) {
		return err
	}

	status := apiStatus.Status()
	switch {
	case status.Reason == metav1.StatusReasonExpired,
		status.Reason == metav1.StatusReasonGone,
		status.Code == http.StatusGone:
		return &core.ErrCursorExpired{Cursor: cursor, Cause: err}
	}

	return err
}

// FromStatus converts a Status received on a watch stream into an
// error, mapping expired cursors like wrapK8sError does.
func FromStatus(status *metav1.Status, cursor string) error {
	return wrapK8sError(&apierrors.StatusError{ErrStatus: *status}, cursor)
}
