// Package ident implements an RFC1413 ident client.
package ident

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
)

var re_validUserName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]{0,31}$`)

// Query asks the ident service on the remote host which username owns
// the connection between localAddr and remoteAddr. Both addresses must
// be TCP addresses. The lifetime of the query, including the dial, is
// bounded by ctx.
func Query(ctx context.Context, localAddr, remoteAddr net.Addr) (string, error) {
	la, ok := localAddr.(*net.TCPAddr)
	ra, ok2 := remoteAddr.(*net.TCPAddr)
	if !ok || !ok2 {
		return "", fmt.Errorf("ident queries require TCP addresses")
	}

	d := net.Dialer{
		LocalAddr: &net.TCPAddr{IP: la.IP, Zone: la.Zone},
	}

	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ra.IP.String(), "113"))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	_, err = fmt.Fprintf(conn, "%d, %d\r\n", ra.Port, la.Port)
	if err != nil {
		return "", err
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}

	return parseResponse(line)
}

// parseResponse extracts the username from an ident response line of the
// form "port, port : USERID : os : username".
func parseResponse(line string) (string, error) {
	fields := strings.Split(strings.Trim(line, " \r\n"), ":")
	if len(fields) < 4 {
		return "", fmt.Errorf("malformed ident response: %q", line)
	}

	if reply := strings.TrimSpace(fields[1]); reply != "USERID" {
		return "", fmt.Errorf("ident server returned %q", reply)
	}

	username := strings.TrimSpace(fields[3])
	if !re_validUserName.MatchString(username) {
		return "", fmt.Errorf("ident server returned malformed username: %q", username)
	}

	return username, nil
}
