package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsStream  int64
	errorsTrading int64
	warnsStream   int64
	warnsTrading  int64
	streamReads   int64
	orderRequests int64
	channels      sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "stream") || strings.Contains(component, "store") {
		atomic.AddInt64(&warnsStream, 1)
	} else if strings.Contains(component, "trading") {
		atomic.AddInt64(&warnsTrading, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "stream") || strings.Contains(component, "store") {
		atomic.AddInt64(&errorsStream, 1)
	} else if strings.Contains(component, "trading") {
		atomic.AddInt64(&errorsTrading, 1)
	}
}

// IncrementStreamRead records one inbound frame from the market data hub.
func IncrementStreamRead(channel string, size int) {
	atomic.AddInt64(&streamReads, 1)
	recordChannel("stream_"+channel, size)
}

// IncrementOrderRequest records one trading gateway round trip.
func IncrementOrderRequest(accountID string) {
	atomic.AddInt64(&orderRequests, 1)
	recordChannel("trading_"+accountID, 0)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// StartReport begins periodic logging of system and channel statistics and
// publishes them to CloudWatch when the client is configured.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")

	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	memMB := int64(0)
	if memStats != nil {
		memMB = int64(memStats.Used) / 1024 / 1024
	}
	diskMB := int64(0)
	if diskStats != nil {
		diskMB = int64(diskStats.Used) / 1024 / 1024
	}

	fields := Fields{
		"errors_stream":  atomic.LoadInt64(&errorsStream),
		"errors_trading": atomic.LoadInt64(&errorsTrading),
		"warns_stream":   atomic.LoadInt64(&warnsStream),
		"warns_trading":  atomic.LoadInt64(&warnsTrading),
		"stream_reads":   atomic.LoadInt64(&streamReads),
		"order_requests": atomic.LoadInt64(&orderRequests),
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuPct,
		"memory_mb":      memMB,
		"disk_mb":        diskMB,
		"channels":       channelData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memMB))},
		cwtypes.MetricDatum{MetricName: aws.String("DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskMB))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsStream"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsStream)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsTrading"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsTrading)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsStream"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&warnsStream)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsTrading"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&warnsTrading)))},
		cwtypes.MetricDatum{MetricName: aws.String("StreamReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&streamReads)))},
		cwtypes.MetricDatum{MetricName: aws.String("OrderRequests"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&orderRequests)))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
