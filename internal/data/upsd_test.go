package data

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"LabSentry/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"

	"google.golang.org/protobuf/types/known/durationpb"
)

// fakeUpsd runs a one-connection upsd stub that answers GET VAR commands
// from the vars map and returns its listen address.
func fakeUpsd(t *testing.T, vars map[string]string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			parts := strings.Fields(strings.TrimSpace(line))
			if len(parts) != 4 || parts[0] != "GET" || parts[1] != "VAR" {
				fmt.Fprintf(conn, "ERR UNKNOWN-COMMAND\n")
				continue
			}
			value, ok := vars[parts[3]]
			if !ok {
				fmt.Fprintf(conn, "ERR VAR-NOT-SUPPORTED\n")
				continue
			}
			fmt.Fprintf(conn, "VAR %s %s %q\n", parts[2], parts[3], value)
		}
	}()

	return ln.Addr().String()
}

func newTestUPSClient(addr string) *UPSClient {
	return NewUPSClient(&conf.Data{
		Ups: &conf.Data_UPS{
			Addr:    addr,
			Name:    "myups",
			Timeout: durationpb.New(2 * time.Second),
		},
	}, log.NewStdLogger(os.Stdout))
}

// TestPoll_ReadsStatusChargeAndRuntime verifies one poll combines the three
// upsd variables into a reading.
func TestPoll_ReadsStatusChargeAndRuntime(t *testing.T) {
	addr := fakeUpsd(t, map[string]string{
		"ups.status":      "OB DISCHRG",
		"battery.charge":  "42",
		"battery.runtime": "1380",
	})

	reading, err := newTestUPSClient(addr).Poll(context.Background())

	assert.NoError(t, err)
	assert.True(t, reading.OnBattery)
	assert.Equal(t, 42.0, reading.ChargePercent)
	assert.Equal(t, int64(1380), reading.RuntimeSeconds)
	assert.Equal(t, "OB DISCHRG", reading.RawStatus)
}

// TestPoll_OnlineStatus verifies an OL status maps to a non-battery reading.
func TestPoll_OnlineStatus(t *testing.T) {
	addr := fakeUpsd(t, map[string]string{
		"ups.status":      "OL CHRG",
		"battery.charge":  "100",
		"battery.runtime": "5820",
	})

	reading, err := newTestUPSClient(addr).Poll(context.Background())

	assert.NoError(t, err)
	assert.False(t, reading.OnBattery)
}

// TestPoll_UpsdErrorReply verifies an ERR reply surfaces as an error.
func TestPoll_UpsdErrorReply(t *testing.T) {
	addr := fakeUpsd(t, map[string]string{
		"battery.charge":  "90",
		"battery.runtime": "3000",
	})

	_, err := newTestUPSClient(addr).Poll(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "VAR-NOT-SUPPORTED")
}

// TestPoll_ConnectionRefused verifies a dead upsd is a plain error, not a
// hang.
func TestPoll_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	addr := ln.Addr().String()
	assert.NoError(t, ln.Close())

	_, err = newTestUPSClient(addr).Poll(context.Background())

	assert.Error(t, err)
}

// TestPoll_MalformedCharge verifies an unparseable numeric variable is an
// error.
func TestPoll_MalformedCharge(t *testing.T) {
	addr := fakeUpsd(t, map[string]string{
		"ups.status":      "OL",
		"battery.charge":  "n/a",
		"battery.runtime": "3000",
	})

	_, err := newTestUPSClient(addr).Poll(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "battery.charge")
}

// TestParseVarReply covers reply framing edge cases.
func TestParseVarReply(t *testing.T) {
	value, ok := parseVarReply(`VAR myups ups.status "OB DISCHRG"`, "myups", "ups.status")
	assert.True(t, ok)
	assert.Equal(t, "OB DISCHRG", value)

	_, ok = parseVarReply(`VAR other ups.status "OB"`, "myups", "ups.status")
	assert.False(t, ok)

	_, ok = parseVarReply(`VAR myups ups.status OB`, "myups", "ups.status")
	assert.False(t, ok)
}

// TestStatusOnBattery verifies flag parsing, including OB embedded among
// other flags.
func TestStatusOnBattery(t *testing.T) {
	assert.True(t, statusOnBattery("OB"))
	assert.True(t, statusOnBattery("OB DISCHRG LB"))
	assert.False(t, statusOnBattery("OL CHRG"))
	assert.False(t, statusOnBattery(""))
	// OBSOLETE must not match as a prefix
	assert.False(t, statusOnBattery("OLB"))
}
