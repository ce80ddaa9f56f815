package test

import (
	"bytes"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/forwarder"
	"github.com/relex/udpc-agent/output/udpoutput"
	"github.com/relex/udpc-agent/run"
	"github.com/relex/udpc-agent/util"
)

type benchmarkMetric struct {
	fmt string
	val float64
}

// BenchmarkResult contains record counts of a benchmark run
type BenchmarkResult struct {
	Submitted   int
	Overwritten int
	Forwarded   int
	Received    int
}

// RunBenchmarkForwarder benchmarks a forwarder fed by parallel producers and sending to a local UDP sink
func RunBenchmarkForwarder(numRecords int, recordSize int, numSlots int, numProducers int) BenchmarkResult {
	sink := launchUDPSink()
	mfactory := base.NewMetricFactory("benchforwarder_", nil, nil)
	transportConfig := udpoutput.Config{LocalAddress: "127.0.0.1:0", WriteBufferSize: 4 * datasize.MB}

	fwd, err := forwarder.NewForwarder(logger.Root(), numSlots, sink.Destination(), transportConfig.NewOpenFunc(logger.Root()), mfactory)
	if err != nil {
		logger.Panic(err)
	}
	if err := fwd.Start(); err != nil {
		logger.Panic(err)
	}

	record := bytes.Repeat([]byte{'x'}, recordSize)
	costTracker := NewCostTracker()
	wg := &sync.WaitGroup{}
	for p := 0; p < numProducers; p++ {
		wg.Add(1)
		go func(first int) {
			defer wg.Done()
			for i := first; i < numRecords; i += numProducers {
				fwd.Submit(record)
			}
		}(p)
	}
	wg.Wait()
	fwd.Stop()
	report := costTracker.Report()

	numReceived, _ := sink.Close()
	result := collectBenchmarkResult(mfactory, numReceived)
	reportBenchmarkResult("BenchmarkForwarder", numRecords, int64(numRecords)*int64(recordSize), report, result)
	return result
}

// RunBenchmarkAgent benchmarks a fully configured agent fed by TCP input and sending to a local UDP sink
//
// The destination and inputs in config file are replaced. Control planes are not launched.
func RunBenchmarkAgent(configFile string, numRecords int, recordSize int) BenchmarkResult {
	sink := launchUDPSink()

	loader, loaderErr := run.NewLoaderFromConfigFile(configFile, "benchagent_")
	if loaderErr != nil {
		logger.Panic(loaderErr)
	}
	loader.Destination = run.DestinationConfig{Destination: sink.Destination()}
	loader.Inputs.TCP = []run.TCPInputConfig{{Address: "localhost:0"}}
	loader.Inputs.LogHook.Enabled = false

	fwd, fwdErr := loader.LaunchForwarder(logger.Root())
	if fwdErr != nil {
		logger.Panic(fwdErr)
	}
	inputAddrs, shutdownInputs, inputErr := loader.LaunchInputs(fwd)
	if inputErr != nil {
		logger.Panic(inputErr)
	}

	inputData := append(bytes.Repeat([]byte{'x'}, recordSize), '\n')
	costTracker := NewCostTracker()
	runBenchmarkInputSender(inputAddrs[0], inputData, numRecords)
	time.Sleep(1 * time.Second)

	logger.Info("stopping...")
	shutdownInputs()
	fwd.Stop()
	report := costTracker.Report()

	numReceived, _ := sink.Close()
	result := collectBenchmarkResult(loader.MetricFactory, numReceived)
	reportBenchmarkResult("BenchmarkAgent", numRecords, int64(len(inputData))*int64(numRecords), report, result)
	return result
}

func runBenchmarkInputSender(agentAddress string, inputData []byte, repeat int) {
	const maxFrameSize = 1 * 1024 * 1024

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	conn, err := net.Dial("tcp", agentAddress)
	if err != nil {
		logger.Fatal("connect: ", err.Error())
	}

	numSent := int64(0)
	normalFrameRepeat := maxFrameSize/len(inputData) + 1
	normalFrame := bytes.Repeat(inputData, normalFrameRepeat)

	lastFrameRepeat := repeat % normalFrameRepeat
	lastFrame := normalFrame[:len(inputData)*lastFrameRepeat]
	for i := 0; i < repeat/normalFrameRepeat; i++ {
		n, err := conn.Write(normalFrame)
		if err != nil {
			logger.Fatal("error sending: ", err.Error())
		}
		numSent += int64(n)
	}
	if n, err := conn.Write(lastFrame); err != nil {
		logger.Fatal("error sending last: ", err.Error())
	} else {
		numSent += int64(n)
	}

	if err := conn.Close(); err != nil {
		logger.Fatal("close: ", err.Error())
	}
	logger.Infof("writer sent %d bytes", numSent)
}

func collectBenchmarkResult(mfactory *base.MetricFactory, numReceived int) BenchmarkResult {
	sum := func(name string) int {
		return int(util.SumMetricValues(mfactory.AddOrGetCounter(name, "", nil, nil)))
	}
	return BenchmarkResult{
		Submitted:   sum("submitted_records_total"),
		Overwritten: sum("overwritten_records_total"),
		Forwarded:   sum("forwarded_records_total"),
		Received:    numReceived,
	}
}

func reportBenchmarkResult(title string, numLogs int, sizeOfLogs int64, report CostReport, result BenchmarkResult) {
	if result.Submitted != numLogs {
		logger.Errorf("numbers of submitted records don't match: %d, should be %d", result.Submitted, numLogs)
	}
	if result.Forwarded+result.Overwritten != result.Submitted {
		logger.Errorf("numbers of forwarded and overwritten records don't add up: %d + %d != %d",
			result.Forwarded, result.Overwritten, result.Submitted)
	}
	metrics := []benchmarkMetric{
		{fmt: "%.0f log/sec", val: float64(numLogs) / report.RealTime.Seconds()},
		{fmt: "%.0f MB/sec", val: float64(sizeOfLogs) / 1048576 / report.RealTime.Seconds()},
		{fmt: "%0.2f alloc/log", val: float64(report.NumHeapAllocs) / float64(numLogs)},
		{fmt: "%0.2f%% user", val: 100.0 * report.UserTime.Seconds() / report.RealTime.Seconds()},
		{fmt: "%0.2f%% sys", val: 100.0 * report.SystemTime.Seconds() / report.RealTime.Seconds()},
		{fmt: "%0.2f%% gc", val: 100.0 * report.GCCPUFraction},
		{fmt: "%.0f GCs", val: float64(report.NumGCs)},
		{fmt: "%0.3f ctxsw/log", val: float64(report.ContextSwitches) / float64(numLogs)},
		{fmt: "%.0f KB maxrss", val: float64(report.MaxResidentKB)},
		{fmt: "%.0f procs", val: float64(report.NumProcs)},
		{fmt: "%.02f sec", val: report.RealTime.Seconds()},
		{fmt: "%.0f forwarded", val: float64(result.Forwarded)},
		{fmt: "%.0f overwritten", val: float64(result.Overwritten)},
		{fmt: "%.0f received", val: float64(result.Received)},
	}
	printBenchmarkMetrics(title, metrics)
}

func printBenchmarkMetrics(title string, metrics []benchmarkMetric) {
	sb := make([]byte, 0, 200)
	sb = append(sb, fmt.Sprintf("%s:", title)...)
	for _, m := range metrics {
		sb = append(sb, fmt.Sprintf("\t"+m.fmt, m.val)...)
	}
	fmt.Println(string(sb))
}
