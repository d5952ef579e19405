package redis

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// respServer is an in-process server speaking the subset of RESP2 the
// credit ledger uses: PING, SETNX, MGET and SCAN.
type respServer struct {
	ln net.Listener

	mu   sync.Mutex
	data map[string]string
	wg   sync.WaitGroup
}

func newRESPServer(t *testing.T) *respServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &respServer{ln: ln, data: make(map[string]string)}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

func (s *respServer) Addr() string { return s.ln.Addr().String() }

func (s *respServer) Close() {
	_ = s.ln.Close()
	s.wg.Wait()
}

func (s *respServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *respServer) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		s.exec(w, args)
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (s *respServer) exec(w *bufio.Writer, args []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToUpper(args[0]) {
	case "PING":
		_, _ = w.WriteString("+PONG\r\n")
	case "CLIENT", "SELECT":
		_, _ = w.WriteString("+OK\r\n")
	case "SETNX":
		if _, ok := s.data[args[1]]; ok {
			_, _ = w.WriteString(":0\r\n")
			return
		}
		s.data[args[1]] = args[2]
		_, _ = w.WriteString(":1\r\n")
	case "MGET":
		fmt.Fprintf(w, "*%d\r\n", len(args)-1)
		for _, key := range args[1:] {
			if v, ok := s.data[key]; ok {
				writeBulk(w, v)
			} else {
				_, _ = w.WriteString("$-1\r\n")
			}
		}
	case "SCAN":
		pattern := "*"
		for i := 2; i+1 < len(args); i += 2 {
			if strings.EqualFold(args[i], "MATCH") {
				pattern = args[i+1]
			}
		}
		var keys []string
		for key := range s.data {
			if ok, _ := path.Match(pattern, key); ok {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		_, _ = w.WriteString("*2\r\n")
		writeBulk(w, "0")
		fmt.Fprintf(w, "*%d\r\n", len(keys))
		for _, key := range keys {
			writeBulk(w, key)
		}
	default:
		fmt.Fprintf(w, "-ERR unknown command '%s'\r\n", args[0])
	}
}

func (s *respServer) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("unexpected line %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 1 {
		return nil, fmt.Errorf("bad array header %q", line)
	}

	args := make([]string, n)
	for i := range args {
		header, err := readLine(r)
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimPrefix(header, "$"))
		if err != nil {
			return nil, fmt.Errorf("bad bulk header %q", header)
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args[i] = string(buf[:size])
	}
	return args, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func writeBulk(w *bufio.Writer, v string) {
	fmt.Fprintf(w, "$%d\r\n%s\r\n", len(v), v)
}
