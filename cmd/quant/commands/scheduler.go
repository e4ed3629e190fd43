package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/sentiment-ls/internal/scheduler"
	"github.com/wonny/sentiment-ls/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `정기 백테스트 스케줄러.

등록되는 작업:
- sentiment_backtest: schedule.cron (기본 평일 18:30)
  센티먼트 빌드(활성 시) → 백테스트 → 리포트

Subcommands:
  start   - 스케줄러 시작 (Ctrl+C 로 종료)
  run     - 작업 즉시 1회 실행

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler run`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runSchedulerStart,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run",
		Short: "작업 즉시 실행",
		RunE:  runSchedulerRun,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func newScheduler(a *app) (*scheduler.Scheduler, scheduler.Job, error) {
	s := scheduler.New(a.log)
	job := jobs.NewBacktestJob(a.orch, a.strategy, a.log)
	if err := s.AddJob(job); err != nil {
		return nil, nil, err
	}
	return s, job, nil
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	s, job, err := newScheduler(a)
	if err != nil {
		return err
	}

	s.Start()
	PrintHeader("Scheduler")
	PrintKeyValue(job.Name(), job.Schedule(), 20)
	if next, ok := s.NextRun(job.Name()); ok {
		PrintKeyValue("next run", next.Format("2006-01-02 15:04:05"), 20)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	<-cmd.Context().Done()
	s.Stop()
	return nil
}

func runSchedulerRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	s, job, err := newScheduler(a)
	if err != nil {
		return err
	}

	res, err := s.RunJob(job.Name())
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("job %s failed after %d attempt(s): %s", res.JobName, res.Attempts, res.Error)
	}

	PrintSuccess(fmt.Sprintf("%s completed in %s", res.JobName, res.Duration))
	PrintMetrics(a.orch.LastMetrics(cmd.Context()).Metrics)
	return nil
}
