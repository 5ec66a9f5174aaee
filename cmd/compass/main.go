package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"io"
	"log"
	"math"
	"os"
	"time"

	"github.com/richinfante/lis2mdl"
	lisi2c "github.com/richinfante/lis2mdl/i2c"
	"gobot.io/x/gobot/sysfs"
)

func main() {
	device := flag.String("device", "/dev/i2c-1", "I2C device")
	address := flag.Uint("address", 0, "Sensor address (0 = factory default)")
	interval := flag.Duration("interval", time.Second, "Interval between measurements")
	decimals := flag.Int("decimals", 2, "Rounding precision")
	buffer := flag.Bool("buffer", false, "Use output buffering")
	flag.Parse()

	dev, err := sysfs.NewI2cDevice(*device)
	if err != nil {
		log.Fatalln("open I2C device:", err)
	}

	mag := lis2mdl.New(lisi2c.NewBus(dev), lis2mdl.AddressOrDefault(byte(*address)), lis2mdl.SleepDelay{})

	id, err := mag.WhoAmI()
	if err != nil {
		log.Fatalln("identify LIS2MDL:", err)
	}
	if id != lis2mdl.ChipID {
		log.Fatalf("unexpected chip ID %#02x, want %#02x", id, lis2mdl.ChipID)
	}

	if err := mag.Start(); err != nil {
		log.Fatalln("init LIS2MDL:", err)
	}

	fields := make(map[string]interface{})
	out := io.Writer(os.Stdout)
	if *buffer {
		out = bufio.NewWriter(out)
	}
	enc := json.NewEncoder(out)

	for now := range time.NewTicker(*interval).C {
		fields["when"] = now

		if err := mag.Read(); err != nil {
			log.Fatalln("lis2mdl:", err)
		}

		rx, ry, rz := mag.RawField()
		fields["field_raw_x"] = rx
		fields["field_raw_y"] = ry
		fields["field_raw_z"] = rz

		x, y, z := mag.Field()
		fields["field_ut_x"] = round(x, *decimals)
		fields["field_ut_y"] = round(y, *decimals)
		fields["field_ut_z"] = round(z, *decimals)

		fields["heading_degrees"] = round(mag.Heading(), *decimals)

		enc.Encode(fields)
	}
}

func round(x float64, prec int) float64 {
	pow := math.Pow10(prec)
	return math.Round(x*pow) / pow
}
