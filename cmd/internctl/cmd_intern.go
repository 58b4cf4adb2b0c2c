package main

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/celerix-dev/intern-connect/pkg/schema"
	"github.com/celerix-dev/intern-connect/pkg/sdk"
)

var (
	statusFilter string
	checkInPlace string

	submitContent string
	submitFile    string

	leaveType   string
	leaveStart  string
	leaveEnd    string
	leaveReason string

	msgTo      string
	msgSubject string
	msgReply   string

	goalDesc     string
	goalTarget   string
	goalProgress int
	goalStatus   string

	profilePhone     string
	profileAddress   string
	profileEmergency string
)

// authed wraps a call that needs a restored session and prints its response.
func authed(call func(cmd *cobra.Command, in *sdk.Intern, args []string) (*sdk.Response, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		k, err := session(cmd.Context())
		if err != nil {
			return err
		}
		r, err := call(cmd, k.Intern, args)
		return printResult(cmd, r, err)
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show dashboard statistics",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.Dashboard(cmd.Context())
	}),
}

// --- Tasks ---

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List assigned tasks",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.Tasks(cmd.Context(), statusFilter)
	}),
}

var tasksSubmitCmd = &cobra.Command{
	Use:   "submit <task-id>",
	Short: "Submit work for a task",
	Args:  cobra.ExactArgs(1),
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, args []string) (*sdk.Response, error) {
		sub := schema.TaskSubmission{TaskID: args[0], Content: submitContent}
		if submitFile != "" {
			data, err := os.ReadFile(submitFile)
			if err != nil {
				return nil, err
			}
			sub.FileData = base64.StdEncoding.EncodeToString(data)
			sub.FileType = filepath.Ext(submitFile)
		}
		return in.SubmitTask(cmd.Context(), sub)
	}),
}

var tasksSubmissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "List your submissions",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.Submissions(cmd.Context(), statusFilter)
	}),
}

// --- Attendance ---

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show attendance history",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.Attendance(cmd.Context())
	}),
}

var attendanceInCmd = &cobra.Command{
	Use:   "in",
	Short: "Check in for today",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.CheckIn(cmd.Context(), checkInPlace)
	}),
}

var attendanceOutCmd = &cobra.Command{
	Use:   "out",
	Short: "Check out for today",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.CheckOut(cmd.Context())
	}),
}

// --- Leave ---

var leaveCmd = &cobra.Command{
	Use:   "leave",
	Short: "List leave requests",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.LeaveRequests(cmd.Context())
	}),
}

var leaveApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply for leave",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.ApplyLeave(cmd.Context(), schema.LeaveApplication{
			LeaveType: leaveType,
			StartDate: leaveStart,
			EndDate:   leaveEnd,
			Reason:    leaveReason,
		})
	}),
}

// --- Messages ---

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List received messages",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.Messages(cmd.Context())
	}),
}

var messagesSendCmd = &cobra.Command{
	Use:   "send <content>",
	Short: "Send a message to a mentor or admin",
	Args:  cobra.ExactArgs(1),
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, args []string) (*sdk.Response, error) {
		return in.SendMessage(cmd.Context(), schema.OutgoingMessage{
			RecipientID: msgTo,
			Subject:     msgSubject,
			Content:     args[0],
			ParentID:    msgReply,
		})
	}),
}

var messagesReadCmd = &cobra.Command{
	Use:   "read <message-id>",
	Short: "Mark a message as read",
	Args:  cobra.ExactArgs(1),
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, args []string) (*sdk.Response, error) {
		return in.MarkMessageRead(cmd.Context(), args[0])
	}),
}

// --- Goals ---

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "List personal goals",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.Goals(cmd.Context())
	}),
}

var goalsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a goal",
	Args:  cobra.ExactArgs(1),
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, args []string) (*sdk.Response, error) {
		return in.CreateGoal(cmd.Context(), schema.NewGoal{
			Title:       args[0],
			Description: goalDesc,
			TargetDate:  goalTarget,
		})
	}),
}

var goalsUpdateCmd = &cobra.Command{
	Use:   "update <goal-id>",
	Short: "Update goal progress or status",
	Args:  cobra.ExactArgs(1),
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, args []string) (*sdk.Response, error) {
		u := schema.GoalUpdate{Status: goalStatus}
		if cmd.Flags().Changed("progress") {
			u.Progress = &goalProgress
		}
		if u.Progress == nil && u.Status == "" {
			return nil, fmt.Errorf("nothing to update: pass --progress or --status")
		}
		return in.UpdateGoal(cmd.Context(), args[0], u)
	}),
}

// --- Certificates ---

var certificatesCmd = &cobra.Command{
	Use:   "certificates",
	Short: "List earned certificates",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.Certificates(cmd.Context())
	}),
}

var certificatesShowCmd = &cobra.Command{
	Use:   "show <certificate-id>",
	Short: "Show one certificate",
	Args:  cobra.ExactArgs(1),
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, args []string) (*sdk.Response, error) {
		return in.Certificate(cmd.Context(), args[0])
	}),
}

// certificatesVerifyCmd needs no login; verification is public.
var certificatesVerifyCmd = &cobra.Command{
	Use:   "verify <code>",
	Short: "Verify a certificate by its verification code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKit()
		if err != nil {
			return err
		}
		r, err := k.Intern.VerifyCertificate(cmd.Context(), args[0])
		return printResult(cmd, r, err)
	},
}

var announcementsCmd = &cobra.Command{
	Use:   "announcements",
	Short: "List announcements",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.Announcements(cmd.Context())
	}),
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List notifications",
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		return in.Notifications(cmd.Context())
	}),
}

// --- Profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile",
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update contact details",
	RunE: func(cmd *cobra.Command, args []string) error {
		return profileChange(cmd, func(in *sdk.Intern) (*sdk.Response, error) {
			return in.UpdateProfile(cmd.Context(), schema.ProfileUpdate{
				Phone:            profilePhone,
				Address:          profileAddress,
				EmergencyContact: profileEmergency,
			})
		})
	},
}

var profilePasswordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change your password",
	Long: `Change your password. Reads three lines from standard input: the current
password, the new password and its confirmation.`,
	RunE: authed(func(cmd *cobra.Command, in *sdk.Intern, _ []string) (*sdk.Response, error) {
		lines, err := readLines(cmd, 3)
		if err != nil {
			return nil, err
		}
		return in.ChangePassword(cmd.Context(), lines[0], lines[1], lines[2])
	}),
}

var profilePhotoCmd = &cobra.Command{
	Use:   "photo <image-file>",
	Short: "Upload a profile photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri, err := dataURI(args[0])
		if err != nil {
			return err
		}
		return profileChange(cmd, func(in *sdk.Intern) (*sdk.Response, error) {
			return in.UploadPhoto(cmd.Context(), uri)
		})
	},
}

// profileChange runs a profile mutation and keeps the stored identity in step
// with the user the server sends back.
func profileChange(cmd *cobra.Command, call func(in *sdk.Intern) (*sdk.Response, error)) error {
	k, err := session(cmd.Context())
	if err != nil {
		return err
	}
	r, err := call(k.Intern)
	if err != nil {
		return err
	}
	if u := sdk.UserFrom(r); u != nil {
		if err := k.Session.UpdateUser(u); err != nil {
			logger.Warn("failed to store updated profile", zap.Error(err))
		}
	}
	return render(cmd.OutOrStdout(), r)
}

// dataURI encodes a file as a base64 data URI.
func dataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mt := mime.TypeByExtension(filepath.Ext(path))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	return fmt.Sprintf("data:%s;base64,%s", mt, base64.StdEncoding.EncodeToString(data)), nil
}

func init() {
	tasksCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status")
	tasksSubmissionsCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status")
	tasksSubmitCmd.Flags().StringVar(&submitContent, "content", "", "Submission text")
	tasksSubmitCmd.Flags().StringVar(&submitFile, "file", "", "Attach a file")
	tasksCmd.AddCommand(tasksSubmitCmd, tasksSubmissionsCmd)

	attendanceInCmd.Flags().StringVar(&checkInPlace, "location", "", "Where you are working from")
	attendanceCmd.AddCommand(attendanceInCmd, attendanceOutCmd)

	leaveApplyCmd.Flags().StringVar(&leaveType, "type", "casual", "Leave type")
	leaveApplyCmd.Flags().StringVar(&leaveStart, "from", "", "Start date (YYYY-MM-DD)")
	leaveApplyCmd.Flags().StringVar(&leaveEnd, "to", "", "End date (YYYY-MM-DD)")
	leaveApplyCmd.Flags().StringVar(&leaveReason, "reason", "", "Reason")
	leaveApplyCmd.MarkFlagRequired("from")
	leaveApplyCmd.MarkFlagRequired("to")
	leaveCmd.AddCommand(leaveApplyCmd)

	messagesSendCmd.Flags().StringVar(&msgTo, "to", "", "Recipient ID (required)")
	messagesSendCmd.Flags().StringVar(&msgSubject, "subject", "", "Subject")
	messagesSendCmd.Flags().StringVar(&msgReply, "reply-to", "", "Parent message ID")
	messagesSendCmd.MarkFlagRequired("to")
	messagesCmd.AddCommand(messagesSendCmd, messagesReadCmd)

	goalsAddCmd.Flags().StringVar(&goalDesc, "description", "", "Description")
	goalsAddCmd.Flags().StringVar(&goalTarget, "target", "", "Target date (YYYY-MM-DD)")
	goalsUpdateCmd.Flags().IntVar(&goalProgress, "progress", 0, "Progress 0-100")
	goalsUpdateCmd.Flags().StringVar(&goalStatus, "status", "", "New status")
	goalsCmd.AddCommand(goalsAddCmd, goalsUpdateCmd)

	certificatesCmd.AddCommand(certificatesShowCmd, certificatesVerifyCmd)

	profileUpdateCmd.Flags().StringVar(&profilePhone, "phone", "", "Phone number")
	profileUpdateCmd.Flags().StringVar(&profileAddress, "address", "", "Postal address")
	profileUpdateCmd.Flags().StringVar(&profileEmergency, "emergency-contact", "", "Emergency contact")
	profileCmd.AddCommand(profileUpdateCmd, profilePasswordCmd, profilePhotoCmd)
}
