package auth

// Default query parameter names and freshness window.
const (
	DefaultTokenName = "token"
	DefaultTimeName  = "nonce"
	DefaultKeepAlive = 120
)

// Context carries the shared secret and the handshake parameter layout.
type Context struct {
	PrivateKey string `env:"PRIVATE_KEY,required,notEmpty"`
	// KeepAlive is the freshness window in seconds. Zero disables expiry.
	KeepAlive int64  `env:"KEEP_ALIVE" envDefault:"120"`
	TokenName string `env:"TOKEN_NAME" envDefault:"token"`
	TimeName  string `env:"TIME_NAME" envDefault:"nonce"`
}

// NewContext returns a Context with default parameter names and window.
func NewContext(privateKey string) Context {
	return Context{
		PrivateKey: privateKey,
		KeepAlive:  DefaultKeepAlive,
		TokenName:  DefaultTokenName,
		TimeName:   DefaultTimeName,
	}
}

func (c Context) tokenName() string {
	if c.TokenName == "" {
		return DefaultTokenName
	}
	return c.TokenName
}

func (c Context) timeName() string {
	if c.TimeName == "" {
		return DefaultTimeName
	}
	return c.TimeName
}
