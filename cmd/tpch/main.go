package main

import (
	"os"

	olapbench "github.com/SQL-Storm/OLAPBench"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

func main() {
	_ = godotenv.Load()
	dataDir := flag.String("data-dir", "data", "directory for normalized datasets")
	workDir := flag.String("work-dir", "work", "directory for archives, sources and raw output")
	suiteFile := flag.String("suite-file", "", "override the built-in suite definition with a YAML file")
	flag.Parse()

	scaleFactor, err := olapbench.ParseScaleFactor(flag.Arg(0))
	if err != nil {
		olapbench.Logger.Errorf("%v", err)
		os.Exit(1)
	}

	suite := olapbench.SuiteTpch
	if *suiteFile != "" {
		suite, err = olapbench.LoadSuite(*suiteFile)
		if err != nil {
			olapbench.Logger.Errorf("%v", err)
			os.Exit(1)
		}
	}

	olapbench.Logger.Infof("host stat: %+v", olapbench.HostStat())
	pipeline := &olapbench.Pipeline{
		Suite:   suite,
		DataDir: *dataDir,
		WorkDir: *workDir,
		Runner:  olapbench.ExecRunner{},
	}
	if err := pipeline.Run(scaleFactor); err != nil {
		olapbench.Logger.Errorf("failed to prepare %v dataset at sf%v: %v", suite.Name, scaleFactor, err)
		os.Exit(olapbench.ExitCode(err))
	}
}
