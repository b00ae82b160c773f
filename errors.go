package tabsession

import "errors"

var (
	// ErrNoSession reports that no usable token pair is present in the
	// store. It is the quiet path into StateUnauthenticated, not a fault.
	ErrNoSession = errors.New("no session")
	// ErrUnauthorized reports that the identity service rejected the stored
	// access token (expired, revoked, or malformed).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrIdentityUnavailable reports a transport or server-side failure
	// while resolving the identity, as opposed to a rejection of the token.
	ErrIdentityUnavailable = errors.New("identity service unavailable")
	// ErrRevokeFailed reports that logout's remote revoke call failed.
	// Local session state is cleared regardless.
	ErrRevokeFailed = errors.New("remote revoke failed")
	// ErrRenewFailed reports that the refresh-token exchange failed.
	ErrRenewFailed = errors.New("token renewal failed")
	// ErrNoCredentialService reports that an operation requiring the
	// credential-exchange collaborator was invoked without one configured.
	ErrNoCredentialService = errors.New("no credential service configured")
	// ErrInvalidCredentials reports a rejected username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrControllerClosed reports an operation on a controller whose
	// provider has already been closed.
	ErrControllerClosed = errors.New("session controller closed")
	// ErrBuilderUsed reports a second Build call on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
)
