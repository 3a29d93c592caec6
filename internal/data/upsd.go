package data

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"LabSentry/internal/conf"
	"LabSentry/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	defaultUpsdAddr    = "127.0.0.1:3493"
	defaultUpsdTimeout = 5 * time.Second
)

// UPSClient implements biz.PowerSource against a NUT (Network UPS Tools)
// upsd daemon. Each poll opens a short-lived TCP connection, issues three
// GET VAR commands and parses the quoted replies. upsd replies look like:
//
//	VAR myups ups.status "OB DISCHRG"
//	ERR VAR-NOT-SUPPORTED
type UPSClient struct {
	addr    string
	name    string
	timeout time.Duration
	logger  *log.Helper
}

// NewUPSClient creates a upsd client from configuration.
func NewUPSClient(c *conf.Data, logger log.Logger) *UPSClient {
	addr := defaultUpsdAddr
	name := "ups"
	timeout := defaultUpsdTimeout
	if c != nil && c.Ups != nil {
		if c.Ups.Addr != "" {
			addr = c.Ups.Addr
		}
		if c.Ups.Name != "" {
			name = c.Ups.Name
		}
		if c.Ups.Timeout != nil {
			timeout = c.Ups.Timeout.AsDuration()
		}
	}
	return &UPSClient{
		addr:    addr,
		name:    name,
		timeout: timeout,
		logger:  log.NewHelper(logger),
	}
}

// Poll reads ups.status, battery.charge and battery.runtime in one
// connection and returns the combined reading.
func (u *UPSClient) Poll(ctx context.Context) (*model.PowerReading, error) {
	dialer := &net.Dialer{Timeout: u.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", u.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to upsd at %s: %w", u.addr, err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(u.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set upsd deadline: %w", err)
	}

	reader := bufio.NewReader(conn)

	status, err := u.getVar(conn, reader, "ups.status")
	if err != nil {
		return nil, err
	}
	chargeRaw, err := u.getVar(conn, reader, "battery.charge")
	if err != nil {
		return nil, err
	}
	runtimeRaw, err := u.getVar(conn, reader, "battery.runtime")
	if err != nil {
		return nil, err
	}

	charge, err := strconv.ParseFloat(chargeRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse battery.charge %q: %w", chargeRaw, err)
	}
	runtimeSeconds, err := strconv.ParseInt(runtimeRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse battery.runtime %q: %w", runtimeRaw, err)
	}

	return &model.PowerReading{
		OnBattery:      statusOnBattery(status),
		ChargePercent:  charge,
		RuntimeSeconds: runtimeSeconds,
		RawStatus:      status,
	}, nil
}

// getVar issues one GET VAR command and returns the unquoted value.
func (u *UPSClient) getVar(conn net.Conn, reader *bufio.Reader, variable string) (string, error) {
	if _, err := fmt.Fprintf(conn, "GET VAR %s %s\n", u.name, variable); err != nil {
		return "", fmt.Errorf("failed to send GET VAR %s: %w", variable, err)
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read upsd reply for %s: %w", variable, err)
	}
	line = strings.TrimSpace(line)

	if strings.HasPrefix(line, "ERR ") {
		return "", fmt.Errorf("upsd error for %s: %s", variable, strings.TrimPrefix(line, "ERR "))
	}

	value, ok := parseVarReply(line, u.name, variable)
	if !ok {
		return "", fmt.Errorf("unexpected upsd reply for %s: %q", variable, line)
	}
	return value, nil
}

// parseVarReply extracts the quoted value from a `VAR <ups> <var> "<value>"`
// reply line.
func parseVarReply(line, ups, variable string) (string, bool) {
	prefix := fmt.Sprintf("VAR %s %s ", ups, variable)
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	value := strings.TrimPrefix(line, prefix)
	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return "", false
	}
	return value[1 : len(value)-1], true
}

// statusOnBattery interprets the space-separated ups.status flags. OB means
// on battery; OL means on line power. OB wins when both appear.
func statusOnBattery(status string) bool {
	for _, flag := range strings.Fields(status) {
		if flag == "OB" {
			return true
		}
	}
	return false
}
