// Package acmeclient is the C4 ACME client wrapper (§4.4): the only
// component in this module that performs network I/O against the
// certification authority. It is a thin adapter over go-acme/lego's
// low-level order/authorization/challenge API, kept separate from lego's
// own high-level Obtain() so the authorization driver (C5) can drive its
// own polling loop instead of lego's internal one (§4.5 step 7 requires an
// explicit, bounded poll with its own retry/timeout semantics).
package acmeclient

import (
	"context"
	"crypto"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/caasmo/acmerenew/model"
	"github.com/go-acme/lego/v4/acme"
	"github.com/go-acme/lego/v4/acme/api"
	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
	jose "github.com/go-jose/go-jose/v4"
)

// minTLSVersion enforces the §6 transport constant: the ACME client must
// never negotiate below TLS 1.2.
const minTLSVersion = tls.VersionTLS12

// AcmeError wraps a CA problem document, per §4.4/§7.
type AcmeError struct {
	Detail string
	Err    error
}

func (e *AcmeError) Error() string {
	if e.Detail != "" {
		return "acme: " + e.Detail
	}
	return "acme: " + e.Err.Error()
}
func (e *AcmeError) Unwrap() error { return e.Err }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	var problem *acme.ProblemDetails
	if pd, ok := err.(*acme.ProblemDetails); ok {
		problem = pd
	}
	if problem != nil {
		return &AcmeError{Detail: problem.Detail, Err: err}
	}
	return &AcmeError{Err: err}
}

// User implements lego's registration.User so the account key can be used
// both to register and to sign subsequent requests.
type User struct {
	Email        string
	Registration *registration.Resource
	PrivateKey   crypto.PrivateKey
}

func (u *User) GetEmail() string                        { return u.Email }
func (u *User) GetRegistration() *registration.Resource { return u.Registration }
func (u *User) GetPrivateKey() crypto.PrivateKey        { return u.PrivateKey }

// Client wraps the CA-facing calls the renewal engine needs: creating
// orders, fetching authorizations, submitting and polling challenges.
type Client struct {
	core *api.Core
	jwk  *jose.JSONWebKey
}

// NewClient registers (if necessary) the given user against the CA
// directory and returns a Client bound to the resulting account key.
func NewClient(ctx context.Context, directoryURL string, user *User) (*Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: minTLSVersion},
		},
	}

	legoCfg := lego.NewConfig(user)
	legoCfg.CADirURL = directoryURL
	legoCfg.HTTPClient = httpClient

	legoClient, err := lego.NewClient(legoCfg)
	if err != nil {
		return nil, fmt.Errorf("acmeclient: failed to create lego client: %w", err)
	}

	if user.Registration == nil {
		reg, err := legoClient.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
		if err != nil {
			return nil, wrap(err)
		}
		user.Registration = reg
	}

	core, err := api.New(httpClient, "acmerenew", directoryURL, user.Registration.URI, user.PrivateKey, "acmerenew/1.0")
	if err != nil {
		return nil, fmt.Errorf("acmeclient: failed to create low-level ACME core: %w", err)
	}

	jwk := &jose.JSONWebKey{Key: publicKey(user.PrivateKey), Algorithm: "ES256"}

	return &Client{core: core, jwk: jwk}, nil
}

func publicKey(priv crypto.PrivateKey) crypto.PublicKey {
	type signer interface{ Public() crypto.PublicKey }
	if s, ok := priv.(signer); ok {
		return s.Public()
	}
	return nil
}

// CreateOrder requests a new order for the given identifier set (§4.4).
func (c *Client) CreateOrder(ctx context.Context, identifiers []string) (model.Order, error) {
	extOrder, err := c.core.Orders.New(identifiers)
	if err != nil {
		return model.Order{}, wrap(err)
	}
	return model.Order{
		AuthorizationURLs: extOrder.Authorizations,
		FinalizeURL:       extOrder.Finalize,
		Identifiers:       identifiers,
		Opaque:            extOrder,
	}, nil
}

// GetAuthorizationDetails fetches the current state of one authorization.
func (c *Client) GetAuthorizationDetails(ctx context.Context, url string) (model.Authorization, error) {
	authz, err := c.core.Authorizations.Get(url)
	if err != nil {
		return model.Authorization{}, wrap(err)
	}
	return toModelAuthorization(url, authz), nil
}

// GetChallengeDetails derives the proof material (token + key
// authorization) a validation plugin needs to answer the given challenge,
// per RFC 8555 §8.1: keyAuthorization = token || '.' || base64url(JWK
// thumbprint).
func (c *Client) GetChallengeDetails(ctx context.Context, ch model.Challenge) (string, error) {
	thumbprint, err := c.jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("acmeclient: failed to compute account key thumbprint: %w", err)
	}
	return ch.Token + "." + base64.RawURLEncoding.EncodeToString(thumbprint), nil
}

// SubmitChallengeAnswer tells the CA to attempt verification of the
// challenge.
func (c *Client) SubmitChallengeAnswer(ctx context.Context, ch model.Challenge) (model.Challenge, error) {
	extChlg, err := c.core.Challenges.New(ch.URL)
	if err != nil {
		return model.Challenge{}, wrap(err)
	}
	return toModelChallenge(extChlg.Challenge), nil
}

// DecodeChallenge re-fetches a challenge's current status, used by the
// authorization driver's poll loop (§4.5 step 7).
func (c *Client) DecodeChallenge(ctx context.Context, url string) (model.Challenge, error) {
	chlg, err := c.core.Challenges.Get(url)
	if err != nil {
		return model.Challenge{}, wrap(err)
	}
	return toModelChallenge(chlg), nil
}

// FinalizeCertificate generates a key pair and CSR for the order's
// identifier set, submits the CSR to the finalize URL, and downloads the
// issued chain once the order reaches "valid". This is the CA-facing half
// of the C8 certificate cache service's miss path (§4.8).
func (c *Client) FinalizeCertificate(ctx context.Context, order model.Order) ([]byte, error) {
	privateKey, err := certcrypto.GeneratePrivateKey(certcrypto.EC256)
	if err != nil {
		return nil, fmt.Errorf("acmeclient: failed to generate certificate key: %w", err)
	}

	csr, err := certcrypto.GenerateCSR(privateKey, order.Identifiers[0], order.Identifiers[1:], false)
	if err != nil {
		return nil, fmt.Errorf("acmeclient: failed to generate CSR: %w", err)
	}

	finalized, err := c.core.Orders.UpdateForCertificate(order.FinalizeURL, csr)
	if err != nil {
		return nil, wrap(err)
	}

	raw, err := c.core.Certificates.Get(finalized.Certificate, true)
	if err != nil {
		return nil, wrap(err)
	}

	keyPEM := certcrypto.PEMEncode(privateKey)

	return append(raw.Cert, keyPEM...), nil
}

func toModelAuthorization(url string, a acme.Authorization) model.Authorization {
	out := model.Authorization{
		URL:        url,
		Status:     model.ChallengeStatus(a.Status),
		Identifier: a.Identifier.Value,
	}
	for _, c := range a.Challenges {
		out.Challenges = append(out.Challenges, toModelChallenge(c))
	}
	return out
}

func toModelChallenge(c acme.Challenge) model.Challenge {
	out := model.Challenge{
		Type:   c.Type,
		URL:    c.URL,
		Status: model.ChallengeStatus(c.Status),
		Token:  c.Token,
	}
	if c.Error != nil {
		out.Error = c.Error.Detail
	}
	return out
}
