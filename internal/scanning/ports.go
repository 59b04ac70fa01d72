package scanning

// UnknownService is the label reported for ports outside the well-known table.
const UnknownService = "Unknown"

// PortService pairs a TCP port with the service conventionally bound to it.
type PortService struct {
	Port uint16 `json:"port"`
	Name string `json:"service"`
}

// wellKnownPorts is probed, in this order, for every online host.
var wellKnownPorts = []PortService{
	{21, "FTP"},
	{22, "SSH"},
	{23, "Telnet"},
	{25, "SMTP"},
	{53, "DNS"},
	{80, "HTTP"},
	{110, "POP3"},
	{135, "RPC"},
	{139, "NetBIOS"},
	{443, "HTTPS"},
	{445, "SMB"},
	{1433, "MSSQL"},
	{3306, "MySQL"},
	{3389, "RDP"},
	{5432, "PostgreSQL"},
	{8080, "HTTP-alt"},
}

var serviceByPort = func() map[uint16]string {
	m := make(map[uint16]string, len(wellKnownPorts))
	for _, p := range wellKnownPorts {
		m[p.Port] = p.Name
	}
	return m
}()

// WellKnownPorts returns a copy of the port table in probe order.
func WellKnownPorts() []PortService {
	out := make([]PortService, len(wellKnownPorts))
	copy(out, wellKnownPorts)
	return out
}

// ServiceName returns the label for port, or UnknownService.
func ServiceName(port uint16) string {
	if name, ok := serviceByPort[port]; ok {
		return name
	}
	return UnknownService
}
