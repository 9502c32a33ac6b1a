package store

import (
	"os"
	"strings"
	"time"

	"github.com/solettaproject/soletta-sub010/ferr"
)

// i2cPrefix is the token spec §6 says marks a memory-map device-creation
// path URL: "create,i2c,<sysfs-rel-path>,<dev-number>,<dev-name>".
const i2cPrefix = "create,i2c,"

// i2cPollInterval/i2cPollTimeout govern how long Add waits for the I²C
// collaborator's resolved sysfs path to appear, per spec §6: "polls the
// path's existence for up to one second yielding between attempts".
const (
	i2cPollInterval = 20 * time.Millisecond
	i2cPollTimeout  = time.Second
)

// I2CResolver is the device-tree/I²C device-creation collaborator from spec
// §6, explicitly out of scope for this core (spec §1) — the runtime only
// calls it and handles its result.
type I2CResolver interface {
	// Create resolves an I²C device by its sysfs-relative path, device
	// name, and device number to a sysfs directory path, per spec §6's
	// "create(rel_path, dev_name, dev_number) → sysfs path".
	Create(relPath, devName, devNumber string) (string, error)
}

// noI2C is the default I2CResolver: device-tree resolution is explicitly
// out of scope for the core (spec §1), so every call fails with
// NotSupported — but the path-parsing and polling logic around the call,
// which spec §6 does assign to the core, still runs.
type noI2C struct{}

func (noI2C) Create(relPath, devName, devNumber string) (string, error) {
	return "", ferr.New(ferr.NotSupported, "I2C device creation is not implemented by this runtime")
}

// resolveBackingPath turns spec's "create,i2c,..." URL grammar into a
// concrete backing path, or returns path unchanged if it isn't prefixed
// (spec §6: "Non-prefixed paths are used verbatim").
func resolveBackingPath(path string, resolver I2CResolver) (resolved string, viaI2C bool, err error) {
	if !strings.HasPrefix(path, i2cPrefix) {
		return path, false, nil
	}

	fields := strings.Split(path, ",")
	if len(fields) != 5 {
		return "", false, ferr.Newf(ferr.InvalidArgument, "malformed i2c device path %q: expected 5 comma-separated fields", path)
	}
	relPath, devNumber, devName := fields[2], fields[3], fields[4]

	sysfsDir, err := resolver.Create(relPath, devName, devNumber)
	if err != nil {
		return "", false, ferr.Wrap(ferr.IoError, "i2c device creation failed", err)
	}
	eeprom := sysfsDir + "/eeprom"

	deadline := time.Now().Add(i2cPollTimeout)
	for {
		if _, statErr := os.Stat(eeprom); statErr == nil {
			return eeprom, true, nil
		}
		if time.Now().After(deadline) {
			return "", false, ferr.Newf(ferr.IoError, "i2c eeprom path %q did not appear within %s", eeprom, i2cPollTimeout)
		}
		time.Sleep(i2cPollInterval)
	}
}
