package workflow_test

import (
	"context"
	"errors"
	"sync"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/cleanup"
	"github.com/zhengda-lu/zerotrace/internal/history"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
	"github.com/zhengda-lu/zerotrace/internal/workflow"
)

type stubScanner struct {
	targets []scanner.Target
	err     error
	gate    chan struct{}
	calls   int
}

func (s *stubScanner) Scan(ctx context.Context, app catalog.App, full bool) ([]scanner.Target, error) {
	s.calls++
	if s.gate != nil {
		<-s.gate
	}
	return s.targets, s.err
}

type markExisting struct{}

func (markExisting) Resolve(_ context.Context, targets []scanner.Target) []scanner.Target {
	out := make([]scanner.Target, len(targets))
	for i, t := range targets {
		t.Exists = true
		t.Meta = "Exists"
		out[i] = t
	}
	return out
}

type stubExecutor struct {
	got   [][]scanner.Target
	reply cleanup.Result
}

func (e *stubExecutor) Run(_ context.Context, targets []scanner.Target) cleanup.Result {
	e.got = append(e.got, targets)
	return e.reply
}

type stubUninstaller struct {
	err   error
	calls int
}

func (u *stubUninstaller) Run(context.Context, catalog.App) error {
	u.calls++
	return u.err
}

type memRecorder struct{ entries []history.Entry }

func (r *memRecorder) Record(e history.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

var _ = Describe("Coordinator", func() {
	var (
		ctx      context.Context
		app      catalog.App
		scan     *stubScanner
		exec     *stubExecutor
		uninst   *stubUninstaller
		rec      *memRecorder
		mu       sync.Mutex
		observed []workflow.Step
		coord    *workflow.Coordinator
	)

	BeforeEach(func() {
		ctx = context.Background()
		app = catalog.App{DisplayName: "FooBar", Publisher: "Acme", UninstallString: `"C:\Foo\unins000.exe"`}
		scan = &stubScanner{targets: []scanner.Target{
			{Kind: scanner.Path, Value: `C:\Program Files\FooBar`},
			{Kind: scanner.RegistryKey, Value: `HKLM:\SOFTWARE\FooBar`},
		}}
		exec = &stubExecutor{reply: cleanup.Result{Success: true, Counts: cleanup.Counts{Paths: 1, Registry: 1},
			Message: "Paths: 1, Registry: 1, Services: 0, Tasks: 0, Firewall: 0."}}
		uninst = &stubUninstaller{}
		rec = &memRecorder{}
		observed = nil
		coord = workflow.New(workflow.Deps{
			Scanner:     scan,
			Resolver:    markExisting{},
			Executor:    exec,
			Uninstaller: uninst,
			Recorder:    rec,
			Observer: func(s workflow.State) {
				mu.Lock()
				defer mu.Unlock()
				observed = append(observed, s.Step)
			},
		}, true, logr.Discard())
	})

	Describe("Scan", func() {
		It("lands in Audit with resolved items", func() {
			st, err := coord.Scan(ctx, app, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Step).To(Equal(workflow.Audit))
			Expect(st.Busy).To(BeFalse())
			Expect(st.Items).To(HaveLen(2))
			Expect(st.Items[0].Target.Exists).To(BeTrue())
			Expect(observed).To(Equal([]workflow.Step{workflow.Scanning, workflow.Audit}))
		})

		It("still lands in Audit when the scan fails", func() {
			scan.err = errors.New("registry unavailable")
			st, err := coord.Scan(ctx, app, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Step).To(Equal(workflow.Audit))
			Expect(st.Status).To(ContainSubstring("registry unavailable"))
		})

		It("rejects a second scan while one is running", func() {
			scan.gate = make(chan struct{})
			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				_, err := coord.Scan(ctx, app, true)
				Expect(err).NotTo(HaveOccurred())
			}()

			Eventually(func() bool { return coord.State().Busy }).Should(BeTrue())
			_, err := coord.Scan(ctx, app, true)
			Expect(err).To(MatchError(workflow.ErrBusy))
			_, err = coord.Cleanup(ctx)
			Expect(err).To(MatchError(workflow.ErrBusy))

			close(scan.gate)
			Eventually(done).Should(BeClosed())
			Expect(coord.State().Step).To(Equal(workflow.Audit))
		})
	})

	Describe("Uninstall", func() {
		It("runs the uninstaller and then scans", func() {
			st, err := coord.Uninstall(ctx, app, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(uninst.calls).To(Equal(1))
			Expect(scan.calls).To(Equal(1))
			Expect(st.Step).To(Equal(workflow.Audit))
			Expect(observed).To(Equal([]workflow.Step{workflow.Uninstalling, workflow.Scanning, workflow.Audit}))
		})

		It("stops before scanning when the uninstaller fails", func() {
			uninst.err = errors.New("uninstaller did not exit in time after 5m0s, it may still be running")
			st, err := coord.Uninstall(ctx, app, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(scan.calls).To(BeZero())
			Expect(st.Step).To(Equal(workflow.AppPicker))
			Expect(st.Busy).To(BeFalse())
			Expect(st.Status).To(Equal("Uninstall failed: " + uninst.err.Error() + "."))
		})

		It("goes straight to scanning when the app has no uninstaller", func() {
			app.UninstallString = ""
			st, err := coord.Uninstall(ctx, app, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(uninst.calls).To(BeZero())
			Expect(st.Step).To(Equal(workflow.Audit))
		})
	})

	Describe("Cleanup", func() {
		BeforeEach(func() {
			_, err := coord.Scan(ctx, app, true)
			Expect(err).NotTo(HaveOccurred())
		})

		It("removes the included items and returns to the picker", func() {
			_, err := coord.Toggle(1)
			Expect(err).NotTo(HaveOccurred())

			st, err := coord.Cleanup(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(exec.got).To(HaveLen(1))
			Expect(exec.got[0]).To(HaveLen(1))
			Expect(exec.got[0][0].Value).To(Equal(`C:\Program Files\FooBar`))
			Expect(st.Step).To(Equal(workflow.AppPicker))
			Expect(st.LastResult).NotTo(BeNil())
			Expect(st.Status).To(Equal(exec.reply.Message))

			Expect(rec.entries).To(HaveLen(1))
			Expect(rec.entries[0].App).To(Equal("FooBar"))
			Expect(rec.entries[0].Removed()).To(Equal(2))
		})

		It("does not call the executor for an empty selection", func() {
			_, err := coord.SetAll(false)
			Expect(err).NotTo(HaveOccurred())

			st, err := coord.Cleanup(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(exec.got).To(BeEmpty())
			Expect(rec.entries).To(BeEmpty())
			Expect(st.Step).To(Equal(workflow.AppPicker))
			Expect(st.Status).To(Equal(workflow.StatusNothingSelected))
		})

		It("does not record a cleanup that needed elevation", func() {
			exec.reply = cleanup.Result{AdminRequired: true, Message: cleanup.AdminRequiredMessage}
			st, err := coord.Cleanup(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.entries).To(BeEmpty())
			Expect(st.Status).To(Equal(cleanup.AdminRequiredMessage))
		})
	})

	Describe("FinishScanOnly", func() {
		It("ends in Done without calling the executor", func() {
			_, err := coord.Scan(ctx, app, true)
			Expect(err).NotTo(HaveOccurred())

			st, err := coord.FinishScanOnly()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Step).To(Equal(workflow.Done))
			Expect(st.Status).To(Equal(workflow.StatusScanOnly))
			Expect(exec.got).To(BeEmpty())
		})
	})
})
