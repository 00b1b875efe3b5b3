package ecat

import (
	"errors"
	"time"

	"github.com/openec/go-ecat/frame"
	"github.com/openec/go-ecat/logger"
)

// MasterConfig holds the configuration parameters of a Master.
type MasterConfig struct {
	// recvTimeout is the time a single frame round trip waits for its response
	// before the commander retries the frame.
	recvTimeout time.Duration

	// retryCount is the number of resend attempts after a lost frame.
	retryCount int

	// maxPayload caps the data length of a single cyclic datagram; larger
	// process images are split across datagrams.
	maxPayload int

	// separateReadWrite selects one write plus one read datagram per cycle
	// instead of the combined read-write datagram.
	separateReadWrite bool

	// sdoTimeout bounds one object-access mailbox exchange.
	sdoTimeout time.Duration

	// foeTimeout bounds one file-transfer block exchange.
	foeTimeout time.Duration

	// eepromTimeout bounds one configuration-memory word access.
	eepromTimeout time.Duration

	// stateTimeout bounds the state walks run during enumeration and mapping.
	stateTimeout time.Duration

	// statePollInterval is the poll period of StateCheck.
	statePollInterval time.Duration

	// mbxPollInterval is the poll period while waiting for a mailbox response.
	mbxPollInterval time.Duration

	logger logger.Logger
}

func newMasterConfig(opts ...MasterOption) (*MasterConfig, error) {
	cfg := &MasterConfig{
		recvTimeout:       20 * time.Millisecond,
		retryCount:        3,
		maxPayload:        frame.MaxDataLen,
		sdoTimeout:        500 * time.Millisecond,
		foeTimeout:        500 * time.Millisecond,
		eepromTimeout:     100 * time.Millisecond,
		stateTimeout:      2 * time.Second,
		statePollInterval: time.Millisecond,
		mbxPollInterval:   200 * time.Microsecond,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// MasterOption represents a functional option for configuring a Master.
type MasterOption interface {
	apply(*MasterConfig) error
}

type masterOptFunc struct {
	name      string
	applyFunc func(*MasterConfig) error
}

func (o *masterOptFunc) apply(cfg *MasterConfig) error { return o.applyFunc(cfg) }

func newMasterOptFunc(name string, f func(*MasterConfig) error) *masterOptFunc {
	return &masterOptFunc{name: name, applyFunc: f}
}

// WithReceiveTimeout sets the per-frame response timeout of the commander.
//
// The default value is 20 milliseconds.
func WithReceiveTimeout(val time.Duration) MasterOption {
	return newMasterOptFunc("WithReceiveTimeout", func(cfg *MasterConfig) error {
		if val <= 0 {
			return errors.New("receive timeout must be positive")
		}
		cfg.recvTimeout = val

		return nil
	})
}

// WithRetryCount sets the number of resend attempts after a lost frame.
// It must be within the range of 0 to 16.
//
// The default value is 3.
func WithRetryCount(count int) MasterOption {
	return newMasterOptFunc("WithRetryCount", func(cfg *MasterConfig) error {
		if count < 0 || count > 16 {
			return errors.New("retry count out of range [0, 16]")
		}
		cfg.retryCount = count

		return nil
	})
}

// WithMaxPayload caps the data length of a single cyclic datagram. Process
// images larger than the cap are split across datagrams.
//
// The default value is the largest payload that fits a full-size frame.
func WithMaxPayload(n int) MasterOption {
	return newMasterOptFunc("WithMaxPayload", func(cfg *MasterConfig) error {
		if n < 1 || n > frame.MaxDataLen {
			return errors.New("max payload out of range [1, MaxDataLen]")
		}
		cfg.maxPayload = n

		return nil
	})
}

// WithSeparateReadWrite makes the cyclic engine send one write and one read
// datagram per cycle instead of a combined read-write datagram. Required when
// devices on the segment cannot service a combined access.
//
// The default is the combined datagram.
func WithSeparateReadWrite() MasterOption {
	return newMasterOptFunc("WithSeparateReadWrite", func(cfg *MasterConfig) error {
		cfg.separateReadWrite = true

		return nil
	})
}

// WithSDOTimeout sets the timeout of one object-access mailbox exchange.
//
// The default value is 500 milliseconds.
func WithSDOTimeout(val time.Duration) MasterOption {
	return newMasterOptFunc("WithSDOTimeout", func(cfg *MasterConfig) error {
		if val <= 0 {
			return errors.New("sdo timeout must be positive")
		}
		cfg.sdoTimeout = val

		return nil
	})
}

// WithFoETimeout sets the timeout of one file-transfer block exchange.
//
// The default value is 500 milliseconds.
func WithFoETimeout(val time.Duration) MasterOption {
	return newMasterOptFunc("WithFoETimeout", func(cfg *MasterConfig) error {
		if val <= 0 {
			return errors.New("foe timeout must be positive")
		}
		cfg.foeTimeout = val

		return nil
	})
}

// WithEEPROMTimeout sets the timeout of one configuration-memory word access.
//
// The default value is 100 milliseconds.
func WithEEPROMTimeout(val time.Duration) MasterOption {
	return newMasterOptFunc("WithEEPROMTimeout", func(cfg *MasterConfig) error {
		if val <= 0 {
			return errors.New("eeprom timeout must be positive")
		}
		cfg.eepromTimeout = val

		return nil
	})
}

// WithStateTimeout sets the timeout of the state walks run during enumeration
// and mapping.
//
// The default value is 2 seconds.
func WithStateTimeout(val time.Duration) MasterOption {
	return newMasterOptFunc("WithStateTimeout", func(cfg *MasterConfig) error {
		if val <= 0 {
			return errors.New("state timeout must be positive")
		}
		cfg.stateTimeout = val

		return nil
	})
}

// WithStatePollInterval sets the poll period of StateCheck.
//
// The default value is 1 millisecond.
func WithStatePollInterval(val time.Duration) MasterOption {
	return newMasterOptFunc("WithStatePollInterval", func(cfg *MasterConfig) error {
		if val <= 0 {
			return errors.New("state poll interval must be positive")
		}
		cfg.statePollInterval = val

		return nil
	})
}

// WithLogger sets the logger for the master.
//
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) MasterOption {
	return newMasterOptFunc("WithLogger", func(cfg *MasterConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
