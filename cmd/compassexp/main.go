package main

import (
	"flag"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richinfante/lis2mdl"
	lisi2c "github.com/richinfante/lis2mdl/i2c"
	"gobot.io/x/gobot/sysfs"
)

func main() {
	device := flag.String("device", "/dev/i2c-1", "I2C device")
	address := flag.Uint("address", 0, "Sensor address (0 = factory default)")
	promaddr := flag.String("prometheus", ":9121", "Prometheus exporter address")
	interval := flag.Duration("interval", 500*time.Millisecond, "Interval between measurements")
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

	c := &compass{mag: mag}
	go c.serve(*interval)

	servePrometheus(*promaddr, c)
}

// compass serializes access to the driver between the sampling loop and
// the scrape handlers.
type compass struct {
	mut     sync.Mutex
	mag     *lis2mdl.Driver
	heading float64
}

func (c *compass) serve(intv time.Duration) {
	for range time.NewTicker(intv).C {
		c.mut.Lock()
		if err := c.mag.Read(); err != nil {
			log.Println("lis2mdl:", err)
		} else {
			c.heading = c.mag.Heading()
		}
		c.mut.Unlock()
	}
}

func (c *compass) Field() (x, y, z float64) {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.mag.Field()
}

func (c *compass) Heading() float64 {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.heading
}

func (c *compass) Calibration() lis2mdl.Calibration {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.mag.Calibration()
}

func servePrometheus(addr string, c *compass) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "sensors",
		Subsystem:   "lis2mdl",
		Name:        "field_microtesla",
		ConstLabels: prometheus.Labels{"direction": "x"},
	}, func() float64 {
		x, _, _ := c.Field()
		return round(x, 2)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "sensors",
		Subsystem:   "lis2mdl",
		Name:        "field_microtesla",
		ConstLabels: prometheus.Labels{"direction": "y"},
	}, func() float64 {
		_, y, _ := c.Field()
		return round(y, 2)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "sensors",
		Subsystem:   "lis2mdl",
		Name:        "field_microtesla",
		ConstLabels: prometheus.Labels{"direction": "z"},
	}, func() float64 {
		_, _, z := c.Field()
		return round(z, 2)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "sensors",
		Subsystem: "lis2mdl",
		Name:      "heading_degrees",
	}, func() float64 {
		return round(c.Heading(), 2)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "sensors",
		Subsystem:   "lis2mdl",
		Name:        "calibration_microtesla",
		ConstLabels: prometheus.Labels{"bound": "x_min"},
	}, func() float64 {
		return finiteOrZero(c.Calibration().MinX)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "sensors",
		Subsystem:   "lis2mdl",
		Name:        "calibration_microtesla",
		ConstLabels: prometheus.Labels{"bound": "x_max"},
	}, func() float64 {
		return finiteOrZero(c.Calibration().MaxX)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "sensors",
		Subsystem:   "lis2mdl",
		Name:        "calibration_microtesla",
		ConstLabels: prometheus.Labels{"bound": "y_min"},
	}, func() float64 {
		return finiteOrZero(c.Calibration().MinY)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "sensors",
		Subsystem:   "lis2mdl",
		Name:        "calibration_microtesla",
		ConstLabels: prometheus.Labels{"bound": "y_max"},
	}, func() float64 {
		return finiteOrZero(c.Calibration().MaxY)
	})

	http.Handle("/metrics", promhttp.Handler())
	http.ListenAndServe(addr, nil)
}

// finiteOrZero masks the ±Inf sentinels the calibration window holds
// before the first heading computation.
func finiteOrZero(x float64) float64 {
	if math.IsInf(x, 0) {
		return 0
	}
	return round(x, 2)
}

func round(x float64, prec int) float64 {
	pow := math.Pow10(prec)
	return math.Round(x*pow) / pow
}
