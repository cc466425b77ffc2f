package evernote

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
)

const (
	// DefaultHost is the production Evernote service.
	DefaultHost = "www.evernote.com"
	// SandboxHost is the developer sandbox.
	SandboxHost = "sandbox.evernote.com"

	userStorePath  = "/edam/user"
	defaultTimeout = 30 * time.Second
	userAgent      = "stackprefix/1.0 (Go)"
)

// Service is the set of remote operations used to validate a session and
// rename notebooks.
type Service interface {
	GetUser(ctx context.Context) (*User, error)
	GetSyncState(ctx context.Context) (*SyncState, error)
	ListNotebooks(ctx context.Context) ([]Notebook, error)
	UpdateNotebook(ctx context.Context, notebook Notebook) (int32, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHost sets the service host, e.g. SandboxHost.
func WithHost(host string) Option {
	return func(c *Client) {
		c.host = host
	}
}

// WithHTTPClient sets the HTTP client used for all calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// Client talks to the UserStore and NoteStore on behalf of one access token.
type Client struct {
	token      string
	host       string
	httpClient *http.Client
	seqID      atomic.Int32

	mu           sync.Mutex
	noteStoreURL string
}

// Compile-time check to ensure Client implements Service
var _ Service = (*Client)(nil)

// NewClient creates a Client authenticated with the given access token.
// No I/O is performed until the first call.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token: token,
		host:  DefaultHost,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// userStoreURL is the fixed UserStore endpoint of the configured host.
func (c *Client) userStoreURL() string {
	return "https://" + c.host + userStorePath
}

// call performs one Thrift round trip against endpoint.
func (c *Client) call(ctx context.Context, endpoint, method string, r reply, args ...fieldWriter) error {
	trans, err := thrift.NewTHttpClientWithOptions(endpoint, thrift.THttpClientOptions{Client: c.httpClient})
	if err != nil {
		return fmt.Errorf("creating transport for %s: %w", endpoint, err)
	}
	defer func() { _ = trans.Close() }()

	if httpTrans, ok := trans.(*thrift.THttpClient); ok {
		httpTrans.SetHeader("User-Agent", userAgent)
	}

	p := thrift.NewTBinaryProtocolConf(trans, &thrift.TConfiguration{})
	seqID := c.seqID.Add(1)

	if err := writeCall(ctx, p, method, seqID, args...); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return readReply(ctx, p, method, seqID, r)
}

// GetNoteStoreURL returns the NoteStore endpoint of the authenticated user,
// resolving it through the UserStore once.
func (c *Client) GetNoteStoreURL(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.noteStoreURL != "" {
		return c.noteStoreURL, nil
	}

	var noteStoreURL string
	err := c.call(ctx, c.userStoreURL(), "getNoteStoreUrl", reply{
		successType: thrift.STRING,
		success: func(ctx context.Context, p thrift.TProtocol) error {
			var err error
			noteStoreURL, err = p.ReadString(ctx)
			return err
		},
		exceptions: userAndSystemExceptions(),
	}, authTokenArg(c.token))
	if err != nil {
		return "", err
	}

	c.noteStoreURL = noteStoreURL
	return noteStoreURL, nil
}

// GetUser returns the account the token belongs to.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	user := &User{}
	err := c.call(ctx, c.userStoreURL(), "getUser", reply{
		successType: thrift.STRUCT,
		success:     user.read,
		exceptions:  userAndSystemExceptions(),
	}, authTokenArg(c.token))
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetSyncState is the cheapest authenticated NoteStore call.
func (c *Client) GetSyncState(ctx context.Context) (*SyncState, error) {
	endpoint, err := c.GetNoteStoreURL(ctx)
	if err != nil {
		return nil, err
	}

	state := &SyncState{}
	err = c.call(ctx, endpoint, "getSyncState", reply{
		successType: thrift.STRUCT,
		success:     state.read,
		exceptions:  userAndSystemExceptions(),
	}, authTokenArg(c.token))
	if err != nil {
		return nil, err
	}
	return state, nil
}

// ListNotebooks returns all notebooks in the order the service lists them.
func (c *Client) ListNotebooks(ctx context.Context) ([]Notebook, error) {
	endpoint, err := c.GetNoteStoreURL(ctx)
	if err != nil {
		return nil, err
	}

	var notebooks []Notebook
	err = c.call(ctx, endpoint, "listNotebooks", reply{
		successType: thrift.LIST,
		success: func(ctx context.Context, p thrift.TProtocol) error {
			elemType, size, err := p.ReadListBegin(ctx)
			if err != nil {
				return err
			}
			if elemType != thrift.STRUCT {
				return fmt.Errorf("listNotebooks: unexpected element type %d", elemType)
			}
			notebooks = make([]Notebook, 0, size)
			for range size {
				var nb Notebook
				if err := nb.read(ctx, p); err != nil {
					return err
				}
				notebooks = append(notebooks, nb)
			}
			return p.ReadListEnd(ctx)
		},
		exceptions: userAndSystemExceptions(),
	}, authTokenArg(c.token))
	if err != nil {
		return nil, err
	}
	return notebooks, nil
}

// UpdateNotebook submits changes to an existing notebook and returns the new
// update sequence number.
func (c *Client) UpdateNotebook(ctx context.Context, notebook Notebook) (int32, error) {
	endpoint, err := c.GetNoteStoreURL(ctx)
	if err != nil {
		return 0, err
	}

	var usn int32
	err = c.call(ctx, endpoint, "updateNotebook", reply{
		successType: thrift.I32,
		success: func(ctx context.Context, p thrift.TProtocol) error {
			var err error
			usn, err = p.ReadI32(ctx)
			return err
		},
		exceptions: map[int16]func() exception{
			1: func() exception { return &UserException{} },
			2: func() exception { return &SystemException{} },
			3: func() exception { return &NotFoundException{} },
		},
	},
		authTokenArg(c.token),
		func(ctx context.Context, p thrift.TProtocol) error {
			return writeStructField(ctx, p, "notebook", 2, notebook.write)
		},
	)
	if err != nil {
		return 0, err
	}
	return usn, nil
}
