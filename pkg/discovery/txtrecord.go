package discovery

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for an advertisement.
func EncodeTXT(info *Info) TXTRecordMap {
	txt := make(TXTRecordMap)

	path := info.Path
	if path == "" {
		path = DefaultPath
	}
	txt[TXTKeyPath] = path

	if info.TLS {
		txt[TXTKeyTLS] = "1"
	}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	return txt
}

// DecodeTXT fills the TXT-derived fields of svc.
func DecodeTXT(txt TXTRecordMap, svc *Service) error {
	svc.Path = DefaultPath
	if p, ok := txt[TXTKeyPath]; ok && p != "" {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
		svc.Path = p
	}

	switch strings.ToLower(txt[TXTKeyTLS]) {
	case "1", "true", "yes":
		svc.TLS = true
	default:
		svc.TLS = false
	}

	svc.Version = txt[TXTKeyVersion]
	return nil
}

// URL returns the websocket URL of the service. A literal address is
// preferred over the host name; IPv4 wins over IPv6.
func (s *Service) URL() (string, error) {
	if s.Port == 0 {
		return "", ErrInvalidPort
	}

	host := s.pickAddress()
	if host == "" {
		return "", fmt.Errorf("%w: %s", ErrNoAddress, s.InstanceName)
	}

	scheme := "ws"
	if s.TLS {
		scheme = "wss"
	}
	path := s.Path
	if path == "" {
		path = DefaultPath
	}

	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(int(s.Port))),
		Path:   path,
	}
	return u.String(), nil
}

func (s *Service) pickAddress() string {
	var v6 string
	for _, addr := range s.Addresses {
		ip := net.ParseIP(addr)
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			return addr
		}
		if v6 == "" && !ip.IsLinkLocalUnicast() {
			v6 = addr
		}
	}
	if v6 != "" {
		return v6
	}
	return strings.TrimSuffix(s.Host, ".")
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidInstanceName)
	}
	if len(name) > MaxInstanceNameLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidInstanceName, MaxInstanceNameLen)
	}
	return nil
}
