package common

// Keys of the flat credential store. The names match what the browser
// extension keeps in its local storage, so a store exported from one can be
// read by the other.
const (
	KeyAuthToken    = "authToken"
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUserEmail    = "userEmail"
	KeyTokenExpiry  = "tokenExpiry"
)

// CredentialKeys lists every key written by a credential replacement.
var CredentialKeys = []string{KeyAuthToken, KeyAccessToken, KeyRefreshToken, KeyUserEmail, KeyTokenExpiry}

// KeyCurrentSessionID is the only key of the lightweight preferences store.
const KeyCurrentSessionID = "current_session_id"

// AuthTokenMarker is the fragment the chat backend puts into error messages
// caused by a missing, invalid or expired token.
const AuthTokenMarker = "authentication token"

// InternalPagePrefixes are URL prefixes of browser-internal pages that carry
// no page content a query could use.
var InternalPagePrefixes = []string{
	"chrome://",
	"brave://",
	"edge://",
	"about:",
	"chrome-extension://",
	"edge-extension://",
}
