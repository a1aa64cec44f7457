package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// Server error codes worth retrying: primary stepdowns, shutdowns, network
// hiccups reported by the server, and exceeded time limits.
var transientCodes = []int{
	6,     // HostUnreachable
	7,     // HostNotFound
	89,    // NetworkTimeout
	91,    // ShutdownInProgress
	189,   // PrimarySteppedDown
	262,   // ExceededTimeLimit
	9001,  // SocketException
	10107, // NotWritablePrimary
	11600, // InterruptedAtShutdown
	11602, // InterruptedDueToReplStateChange
	13435, // NotPrimaryNoSecondaryOk
	13436, // NotPrimaryOrSecondary
	50,    // MaxTimeMSExpired
}

var fatalCodes = []int{
	13, // Unauthorized
	18, // AuthenticationFailed
}

// mapError converts driver errors to store error classes.
// context.DeadlineExceeded and context.Canceled pass through.
func mapError(err error, collection, id string) error {
	if err == nil {
		return nil
	}

	where := strings.TrimSpace(collection + " " + id)
	wrap := func(e error) error {
		if where == "" {
			return e
		}
		return fmt.Errorf("%s: %w", where, e)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return wrap(err)
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return wrap(domain.ErrNotFound)
	}

	var se mongo.ServerError
	if errors.As(err, &se) {
		for _, code := range fatalCodes {
			if se.HasErrorCode(code) {
				return wrap(docstore.Fatal(err))
			}
		}
		for _, code := range transientCodes {
			if se.HasErrorCode(code) {
				return wrap(docstore.Transient(err))
			}
		}
		if se.HasErrorLabel("RetryableWriteError") || se.HasErrorLabel("TransientTransactionError") {
			return wrap(docstore.Transient(err))
		}
	}

	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return wrap(docstore.Transient(err))
	}

	return wrap(err)
}
