package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cepro/solarmonitor/telemetry"
	"github.com/simonvetter/modbus"
)

// exceptions are the errors that mean the device answered but refused the request. Anything else is a transport
// failure and is reported as the device being unreachable.
var exceptions = []error{
	modbus.ErrIllegalFunction,
	modbus.ErrIllegalDataAddress,
	modbus.ErrIllegalDataValue,
	modbus.ErrServerDeviceFailure,
	modbus.ErrServerDeviceBusy,
	modbus.ErrAcknowledge,
	modbus.ErrMemoryParityError,
	modbus.ErrGWPathUnavailable,
	modbus.ErrGWTargetFailedToRespond,
}

func isException(err error) bool {
	for _, exception := range exceptions {
		if errors.Is(err, exception) {
			return true
		}
	}
	return false
}

// Client provides an interface onto Modbus TCP devices.
// It hides the underlying open source modbus library and re-creates the connection after any failed request, so a
// device that drops off the network overnight is picked up again on the next poll.
type Client struct {
	host    string
	unitID  uint8
	timeout time.Duration

	lock            sync.Mutex
	subClient       *modbus.ModbusClient // the raw client of the underlying modbus library we are using
	shouldReconnect bool                 // when true, the subClient is 'dirty' and will be re-created next time a read is made
	logger          *slog.Logger
}

// NewClient returns a client for the device at `host` ("address:port"). No connection is made until the first read.
func NewClient(host string, unitID uint8, timeout time.Duration) *Client {
	return &Client{
		host:            host,
		unitID:          unitID,
		timeout:         timeout,
		shouldReconnect: true,
		logger:          slog.Default().With("host", host),
	}
}

// ReadHoldingRegisters reads `quantity` holding registers from `address`, returning their big-endian bytes.
// Connection failures and timeouts wrap telemetry.ErrUnreachable; exception responses do not.
func (c *Client) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	err := c.reconnectIfNeccesary()
	if err != nil {
		return nil, fmt.Errorf("%w: reconnect: %w", telemetry.ErrUnreachable, err)
	}

	registerVals, err := c.subClient.ReadRegisters(address, quantity, modbus.HOLDING_REGISTER)
	if err != nil {
		if isException(err) {
			return nil, fmt.Errorf("read registers %d+%d: %w", address, quantity, err)
		}
		c.shouldReconnect = true
		return nil, fmt.Errorf("%w: read registers %d+%d: %w", telemetry.ErrUnreachable, address, quantity, err)
	}

	// Each register is a uint16, convert into a byte array
	bytes := make([]byte, len(registerVals)*2)
	for i, registerVal := range registerVals {
		binary.BigEndian.PutUint16(bytes[i*2:i*2+2], registerVal)
	}
	return bytes, nil
}

// Close drops the connection. The next read reconnects.
func (c *Client) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.shouldReconnect = true
	if c.subClient == nil {
		return nil
	}
	err := c.subClient.Close()
	c.subClient = nil
	return err
}

// createSubClient creates the open-source modbus library client and connects to the host.
func (c *Client) createSubClient() error {
	subClient, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s", c.host),
		Timeout: c.timeout,
	})
	if err != nil {
		return fmt.Errorf("create modbus client: %w", err)
	}

	err = subClient.Open()
	if err != nil {
		return fmt.Errorf("open modbus client: %w", err)
	}

	err = subClient.SetUnitId(c.unitID)
	if err != nil {
		subClient.Close()
		return fmt.Errorf("set unit id: %w", err)
	}

	c.subClient = subClient

	return nil
}

// reconnectIfNeccesary will close the old connection and reconnect if there have been problems with the connection.
func (c *Client) reconnectIfNeccesary() error {
	if !c.shouldReconnect {
		return nil
	}

	// Ignore errors from Close() as we will continue with the reconnect anyway and start a new connection.
	if c.subClient != nil {
		c.subClient.Close()
		c.subClient = nil
	}

	err := c.createSubClient()
	if err != nil {
		return err
	}

	c.shouldReconnect = false

	c.logger.Debug("Connected modbus client")

	return nil
}
