package launcher

// Supported connection protocols. Both map directly onto the matching
// OpenSSH client binary.
const (
	ProtoSSH  = "ssh"
	ProtoSFTP = "sftp"
)

// ConnectionRequest is what the TUI hands back to the caller when the user
// picks a host: the fully built destination token and the protocol to use.
type ConnectionRequest struct {
	Target string
	Proto  string
}
