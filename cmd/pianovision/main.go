// Command pianovision transcribes piano playing from video.
package main

func main() {
	Execute()
}
